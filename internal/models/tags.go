package models

// AllowedTags is the fixed category allow-list. The tags endpoint serves this
// slice to the UI so both sides validate against the same values.
var AllowedTags = []string{
	"Textbooks",
	"Electronics",
	"Clothing",
	"Furniture",
	"Tickets",
	"Appliances",
	"Other",
}

// IsAllowedTag reports whether tag is in the allow-list. Comparison is case-sensitive.
func IsAllowedTag(tag string) bool {
	for _, t := range AllowedTags {
		if t == tag {
			return true
		}
	}
	return false
}

// InvalidTags returns the tags that are not allow-listed, in input order.
func InvalidTags(tags []string) []string {
	var invalid []string
	for _, t := range tags {
		if !IsAllowedTag(t) {
			invalid = append(invalid, t)
		}
	}
	return invalid
}
