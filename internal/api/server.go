// Package api exposes the published catalog and the marketplace actions to
// the presentation layer over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketplace-sync/internal/actions"
	"marketplace-sync/internal/catalog"
	cerrors "marketplace-sync/internal/common/errors"
	"marketplace-sync/internal/common/logger"
	"marketplace-sync/internal/ledger"
	"marketplace-sync/internal/metadata"
	"marketplace-sync/internal/pinning"
)

// maxUploadBytes bounds the multipart body of a mint-and-list upload.
const maxUploadBytes = 25 << 20

type Server struct {
	store      *catalog.Store
	dispatcher *actions.Dispatcher
	pinner     *pinning.Client
	refresh    func()
	logger     logger.Logger
	router     chi.Router
}

func NewServer(store *catalog.Store, dispatcher *actions.Dispatcher, pinner *pinning.Client, refresh func(), log logger.Logger) *Server {
	s := &Server{
		store:      store,
		dispatcher: dispatcher,
		pinner:     pinner,
		refresh:    refresh,
		logger:     log.With(map[string]interface{}{"component": "api"}),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/catalog", s.handleCatalog)
		r.Get("/catalog/owned", s.handleOwnedCatalog)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/purchases", s.handlePurchase)
		r.Post("/items", s.handleMintAndList)
	})

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.store.Marketplace()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "catalog not yet synchronized")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleOwnedCatalog(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.store.Owned()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "owned catalog not yet synchronized")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh requested"})
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ItemID uint64 `json:"itemId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ItemID == 0 {
		writeError(w, http.StatusBadRequest, "itemId is required")
		return
	}

	entry, ok := s.findEntry(body.ItemID)
	if !ok {
		writeError(w, http.StatusNotFound, "item not in current catalog")
		return
	}

	totalPrice, err := ledger.ParseAmount(entry.TotalPrice)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "catalog entry has invalid total price")
		return
	}

	if err := s.dispatcher.Purchase(r.Context(), entry.ItemID, totalPrice); err != nil {
		s.writeActionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"itemId": entry.ItemID,
		"status": "purchased",
	})
}

func (s *Server) handleMintAndList(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	description := strings.TrimSpace(r.FormValue("description"))
	priceStr := strings.TrimSpace(r.FormValue("price"))
	if name == "" || description == "" || priceStr == "" {
		writeError(w, http.StatusBadRequest, "name, description and price are required")
		return
	}

	price, err := ledger.ParseAmount(priceStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "price must be a base-unit integer amount")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	imageCID, err := s.pinner.PinFile(r.Context(), header.Filename, file, map[string]string{"name": name})
	if err != nil {
		s.writeActionError(w, cerrors.NewPinFailedError(err))
		return
	}

	doc := metadata.Document{
		Name:        name,
		Description: description,
		Image:       s.pinner.GatewayURL(imageCID),
	}
	docCID, err := s.pinner.PinJSON(r.Context(), doc)
	if err != nil {
		s.writeActionError(w, cerrors.NewPinFailedError(err))
		return
	}

	result, err := s.dispatcher.MintAndList(r.Context(), s.pinner.GatewayURL(docCID), price)
	if err != nil {
		s.writeActionError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"tokenId":  result.TokenID,
		"uri":      s.pinner.GatewayURL(docCID),
		"imageCid": imageCID,
		"mintTx":   result.MintTx,
	})
}

func (s *Server) findEntry(itemID uint64) (catalog.Entry, bool) {
	snap, ok := s.store.Marketplace()
	if !ok {
		return catalog.Entry{}, false
	}
	for _, e := range snap.Entries {
		if e.ItemID == itemID {
			return e, true
		}
	}
	return catalog.Entry{}, false
}

func (s *Server) writeActionError(w http.ResponseWriter, err error) {
	s.logger.WithError(err).Warn("action failed", nil)
	if se, ok := cerrors.AsStandard(err); ok {
		writeJSON(w, http.StatusBadGateway, se)
		return
	}
	writeError(w, http.StatusBadGateway, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Serve runs the HTTP server until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, log logger.Logger) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
