package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"morentube/internal/youtube"
)

// youtubeGET guards the YouTube proxies, which only answer GET.
func youtubeGET(c *gin.Context) bool {
	if c.Request.Method != http.MethodGet {
		writeError(c, methodNotAllowed("Method not allowed"))
		return false
	}
	return true
}

func writeYouTube(c *gin.Context, op string, v any, err error) {
	if err == nil {
		c.JSON(http.StatusOK, v)
		return
	}

	var ye *youtube.Error
	if !errors.As(err, &ye) {
		log.Printf("%s: %v", op, err)
		writeError(c, newError(http.StatusInternalServerError, ErrCodeInternal, err.Error()))
		return
	}
	if ye.Status >= 500 {
		log.Printf("%s: %v", op, err)
	}

	code := codeForStatus(ye.Status)
	switch {
	case errors.Is(err, youtube.ErrMissingKey):
		code = ErrCodeConfigMissing
	case ye.Status >= 500:
		code = ErrCodeUpstream
	}
	writeError(c, &APIError{Status: ye.Status, Code: code, Message: ye.Message, Details: ye.Details})
}

func (s *Server) handleYouTubeTracker(c *gin.Context) {
	if !youtubeGET(c) {
		return
	}
	res, err := s.youtube.Track(c.Request.Context(), c.Query("q"), c.Query("key"))
	writeYouTube(c, "youtube-tracker", res, err)
}

func (s *Server) handleYouTubeSpy(c *gin.Context) {
	if !youtubeGET(c) {
		return
	}
	res, err := s.youtube.Spy(c.Request.Context(), c.Query("q"), c.Query("key"))
	writeYouTube(c, "youtube-spy", res, err)
}

func (s *Server) handleYouTubeTrends(c *gin.Context) {
	if !youtubeGET(c) {
		return
	}
	res, err := s.youtube.Trends(c.Request.Context(), c.DefaultQuery("regionCode", "UA"), c.DefaultQuery("categoryId", "0"), c.Query("key"))
	writeYouTube(c, "youtube-trends", res, err)
}

func (s *Server) handleYouTubeComments(c *gin.Context) {
	if !youtubeGET(c) {
		return
	}
	res, err := s.youtube.Comments(c.Request.Context(), c.Query("q"), c.Query("key"))
	writeYouTube(c, "youtube-comments", res, err)
}

func (s *Server) handleYouTubeSuperSearch(c *gin.Context) {
	if !youtubeGET(c) {
		return
	}
	res, err := s.youtube.SuperSearch(c.Request.Context(), youtube.SearchQuery{
		Query:   c.Query("query"),
		MinSubs: c.DefaultQuery("minSubs", "0"),
		MaxSubs: c.DefaultQuery("maxSubs", "10000"),
		Format:  c.DefaultQuery("format", "all"),
		Key:     c.Query("key"),
	})
	writeYouTube(c, "youtube-super-search", res, err)
}
