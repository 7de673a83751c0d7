// internal/handlers/gallery.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/jason-s-yu/sketchlobby/internal/gallery"
)

// ListImagesHandler returns every image in the library.
func (s *Server) ListImagesHandler(w http.ResponseWriter, r *http.Request) {
	images, err := s.Gallery.List()
	if err != nil {
		s.log.WithError(err).Error("list images failed")
		http.Error(w, "could not list images", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, images)
}

// RandomImageHandler returns one image from the library.
func (s *Server) RandomImageHandler(w http.ResponseWriter, r *http.Request) {
	img, err := s.Gallery.RandomImage()
	if err != nil {
		s.log.WithError(err).Error("random image failed")
		http.Error(w, "could not pick an image", http.StatusInternalServerError)
		return
	}
	if img == nil {
		http.Error(w, "No images available.", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, img)
}

// UploadImageHandler stores the multipart "file" field in the library.
func (s *Server) UploadImageHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.UploadMaxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "File too large.", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "No file uploaded.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	img, err := s.Gallery.Save(header.Filename, file)
	switch {
	case errors.Is(err, gallery.ErrUnsupportedExtension):
		http.Error(w, "Only .jpg, .jpeg, .png, .gif, .webp are allowed.", http.StatusBadRequest)
		return
	case errors.Is(err, gallery.ErrEmptyUpload):
		http.Error(w, "No file uploaded.", http.StatusBadRequest)
		return
	case err != nil:
		s.log.WithError(err).Error("save upload failed")
		http.Error(w, "could not store image", http.StatusInternalServerError)
		return
	}

	s.log.WithField("image", img.ID).Info("image uploaded")
	w.Header().Set("Location", img.URL)
	writeJSON(w, http.StatusCreated, img)
}
