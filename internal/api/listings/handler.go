package listings

import (
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Vasu1712/campus-marketplace/internal/apperr"
	"github.com/Vasu1712/campus-marketplace/internal/conversations"
	"github.com/Vasu1712/campus-marketplace/internal/httputil"
	"github.com/Vasu1712/campus-marketplace/internal/listings"
	"github.com/Vasu1712/campus-marketplace/internal/middleware"
	"github.com/Vasu1712/campus-marketplace/internal/models"
)

const maxImageSize = 5 << 20

type Handler struct {
	Listings      *listings.Service
	Conversations *conversations.Service
	Log           logrus.FieldLogger
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters, err := parseFilters(q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := intParam(q.Get("page"), 1)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, err := intParam(q.Get("limit"), listings.DefaultLimit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.Listings.GetListings(r.Context(), filters, page, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), listings.DefaultLimit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.Listings.SearchListings(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	result, err := h.Listings.RecentListings(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string][]string{"tags": h.Listings.AllowedTags()})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	listing, err := h.Listings.GetListing(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listing)
}

func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	result, err := h.Listings.GetUserListings(r.Context(), user.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// Create accepts a JSON body or a multipart form with an optional "image" file.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var (
		input models.ListingInput
		img   *listings.Image
		err   error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		input, img, err = parseMultipart(r)
	} else {
		err = httputil.DecodeJSON(r, &input)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	listing, err := h.Listings.CreateListingWithImage(r.Context(), input, img, user.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, listing)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	var u models.ListingUpdate
	if err := httputil.DecodeJSON(r, &u); err != nil {
		httputil.WriteError(w, err)
		return
	}
	listing, err := h.Listings.UpdateListing(r.Context(), mux.Vars(r)["id"], u, user.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listing)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if err := h.Listings.DeleteListing(r.Context(), mux.Vars(r)["id"], user.ID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Contact opens (or reuses) the conversation between the caller and the listing owner.
func (h *Handler) Contact(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	listing, err := h.Listings.GetListing(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	conv, err := h.Conversations.StartListingConversation(r.Context(), listing.ID, user.ID, listing.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, conv)
}

func parseFilters(q map[string][]string) (models.ListingFilters, error) {
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	f := models.ListingFilters{
		Tags:     splitList(q["tags"]),
		Location: get("location"),
		Status:   models.ListingStatus(get("status")),
		Search:   get("search"),
	}
	var err error
	if f.MinPrice, err = floatParam("min_price", get("min_price")); err != nil {
		return f, err
	}
	if f.MaxPrice, err = floatParam("max_price", get("max_price")); err != nil {
		return f, err
	}
	return f, nil
}

// splitList accepts repeated and comma-separated values alike.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("invalid number: %s", raw)
	}
	return n, nil
}

func floatParam(name, raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, apperr.Validation("invalid %s: %s", name, raw)
	}
	return &v, nil
}

func parseMultipart(r *http.Request) (models.ListingInput, *listings.Image, error) {
	var in models.ListingInput
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		return in, nil, apperr.Validation("invalid form: %v", err)
	}
	form := r.MultipartForm.Value
	first := func(k string) string {
		if v := form[k]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	in.Title = first("title")
	in.Description = first("description")
	in.Location = first("location")
	in.Tags = splitList(form["tags"])
	price, err := floatParam("price", first("price"))
	if err != nil {
		return in, nil, err
	}
	if price != nil {
		in.Price = *price
	}
	if in.Lat, err = floatParam("lat", first("lat")); err != nil {
		return in, nil, err
	}
	if in.Lng, err = floatParam("lng", first("lng")); err != nil {
		return in, nil, err
	}
	if in.Quantity, err = intParam(first("quantity"), 1); err != nil {
		return in, nil, err
	}

	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		return in, nil, nil
	}
	img, err := readImage(files[0])
	return in, img, err
}

func readImage(fh *multipart.FileHeader) (*listings.Image, error) {
	if fh.Size > maxImageSize {
		return nil, apperr.Validation("image must be smaller than 5MB")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apperr.Validation("invalid image: %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperr.Validation("invalid image: %v", err)
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &listings.Image{Filename: fh.Filename, ContentType: contentType, Data: data}, nil
}
