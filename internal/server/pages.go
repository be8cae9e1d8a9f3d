package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/publicis/arena/internal/store"
)

// pageUser is the signed-in user as exposed to pages.
type pageUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Agency   string `json:"agency"`
	Function string `json:"function"`
}

func pageUserFrom(u *store.User) *pageUser {
	if u == nil {
		return nil
	}
	return &pageUser{ID: u.ID, Name: u.Name, Agency: u.Agency, Function: u.Function}
}

type layoutData struct {
	User       *pageUser        `json:"user"`
	Categories []store.Category `json:"categories"`
	Levels     []store.Level    `json:"levels"`
}

// layout loads the shared page data. Store failures degrade to empty lists.
func (s *Server) layout(c *gin.Context) layoutData {
	data := layoutData{User: pageUserFrom(currentUser(c))}
	catalog, err := s.loadCatalog(c.Request.Context())
	if err != nil {
		s.log.Warn("layout catalog", "error", err)
		data.Categories, data.Levels = []store.Category{}, []store.Level{}
		return data
	}
	data.Categories, data.Levels = catalog.Categories, catalog.Levels
	return data
}

func (s *Server) layoutPage(c *gin.Context) {
	c.JSON(http.StatusOK, s.layout(c))
}

func (s *Server) playPage(c *gin.Context) {
	if currentUser(c) == nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.JSON(http.StatusOK, s.layout(c))
}

func (s *Server) profilePage(c *gin.Context) {
	u := currentUser(c)
	if u == nil {
		c.Redirect(http.StatusFound, "/")
		return
	}

	views := []attemptView{}
	attempts, err := s.store.Attempts().RecentByUser(c.Request.Context(), u.ID, historyLimit)
	if err != nil {
		s.log.Warn("profile attempts", "user_id", u.ID, "error", err)
	}
	for _, a := range attempts {
		views = append(views, newAttemptView(a))
	}
	c.JSON(http.StatusOK, gin.H{"user": pageUserFrom(u), "attempts": views})
}
