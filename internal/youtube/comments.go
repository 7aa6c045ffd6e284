package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
)

type Comment struct {
	ID          string `json:"id"`
	AuthorName  string `json:"authorName"`
	AuthorImage string `json:"authorImage"`
	TextDisplay string `json:"textDisplay"`
	LikeCount   int64  `json:"likeCount"`
	PublishedAt string `json:"publishedAt"`
}

type CommentsResult struct {
	VideoID  string    `json:"videoId,omitempty"`
	Comments []Comment `json:"comments"`
}

const topComments = 20

type commentThreadsResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			TopLevelComment struct {
				Snippet struct {
					AuthorDisplayName     string `json:"authorDisplayName"`
					AuthorProfileImageURL string `json:"authorProfileImageUrl"`
					TextDisplay           string `json:"textDisplay"`
					LikeCount             int64  `json:"likeCount"`
					PublishedAt           string `json:"publishedAt"`
				} `json:"snippet"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	} `json:"items"`
}

// Comments returns the 20 most liked of the 30 most relevant top-level
// comments of the video linked by q.
func (c *Client) Comments(ctx context.Context, q, keyOverride string) (*CommentsResult, error) {
	if q == "" {
		return nil, newError(http.StatusBadRequest, "Missing query parameter (YouTube URL)", ErrInvalidInput)
	}
	key := c.key(keyOverride)
	if key == "" {
		return nil, newError(http.StatusInternalServerError, msgMissingKey, ErrMissingKey)
	}

	videoID := ExtractVideoID(q)
	if videoID == "" {
		return nil, newError(http.StatusBadRequest, "Неможливо знайти Video ID у посиланні", ErrInvalidInput)
	}

	var resp commentThreadsResponse
	err := c.get(ctx, key, "commentThreads", url.Values{
		"part":       {"snippet"},
		"videoId":    {videoID},
		"maxResults": {"30"},
		"order":      {"relevance"},
	}, &resp)
	if err != nil {
		var up *UpstreamError
		if errors.As(err, &up) {
			return nil, &Error{Status: http.StatusInternalServerError, Message: up.Message, Err: err}
		}
		return nil, failed("Ой, щось пішло не так при аналізі коментарів.", err)
	}

	if len(resp.Items) == 0 {
		return &CommentsResult{Comments: []Comment{}}, nil
	}

	comments := make([]Comment, 0, len(resp.Items))
	for _, it := range resp.Items {
		s := it.Snippet.TopLevelComment.Snippet
		comments = append(comments, Comment{
			ID:          it.ID,
			AuthorName:  s.AuthorDisplayName,
			AuthorImage: s.AuthorProfileImageURL,
			TextDisplay: s.TextDisplay,
			LikeCount:   s.LikeCount,
			PublishedAt: s.PublishedAt,
		})
	}
	sort.SliceStable(comments, func(i, j int) bool { return comments[i].LikeCount > comments[j].LikeCount })
	if len(comments) > topComments {
		comments = comments[:topComments]
	}
	return &CommentsResult{VideoID: videoID, Comments: comments}, nil
}
