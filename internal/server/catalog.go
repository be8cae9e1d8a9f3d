package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/publicis/arena/internal/store"
)

type catalogResponse struct {
	Categories []store.Category `json:"categories"`
	Levels     []store.Level    `json:"levels"`
}

// loadCatalog reads categories and levels concurrently.
func (s *Server) loadCatalog(ctx context.Context) (catalogResponse, error) {
	var out catalogResponse
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Categories, err = s.store.Catalog().Categories(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.Levels, err = s.store.Catalog().Levels(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return catalogResponse{}, err
	}
	if out.Categories == nil {
		out.Categories = []store.Category{}
	}
	if out.Levels == nil {
		out.Levels = []store.Level{}
	}
	return out, nil
}

func (s *Server) catalog(c *gin.Context) {
	out, err := s.loadCatalog(c.Request.Context())
	if err != nil {
		s.log.Error("load catalog", "error", err)
		respondError(c, http.StatusInternalServerError, msgCatalogFailed)
		return
	}
	c.JSON(http.StatusOK, out)
}
