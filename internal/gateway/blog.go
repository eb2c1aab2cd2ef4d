package gateway

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"ShareDesk/internal/model"
	"ShareDesk/internal/remote"
)

const excerptLength = 200

func (s *Server) handleBlogPosts(w http.ResponseWriter, r *http.Request) error {
	posts, err := s.data.ListBlogPosts(r.Context())
	if err != nil {
		s.metrics.RemoteError("list_blog_posts")
		return newError(http.StatusBadGateway, "Failed to load blog posts", err)
	}
	// The list only needs the summary. Work on copies; the service may
	// hand out shared slices.
	summaries := make([]model.BlogPost, len(posts))
	for i, p := range posts {
		if p.Excerpt == "" {
			p.Excerpt = excerpt(p.Content)
		}
		p.Content = ""
		summaries[i] = p
	}
	writeJSON(w, http.StatusOK, summaries)
	return nil
}

func (s *Server) handleBlogPost(w http.ResponseWriter, r *http.Request) error {
	post, err := s.data.GetBlogPost(r.Context(), pathVar(r, "slug"))
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return notFound("Blog post not found")
		}
		s.metrics.RemoteError("get_blog_post")
		return newError(http.StatusBadGateway, "Failed to load blog post", err)
	}
	if post.Excerpt == "" {
		post.Excerpt = excerpt(post.Content)
	}
	writeJSON(w, http.StatusOK, post)
	return nil
}

// excerpt returns the text of the first non-empty paragraph of an HTML body,
// cut at a word boundary near excerptLength runes.
func excerpt(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}
	var text string
	doc.Find("p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text = strings.Join(strings.Fields(sel.Text()), " ")
		return text == ""
	})
	if text == "" {
		text = strings.Join(strings.Fields(doc.Text()), " ")
	}
	if utf8.RuneCountInString(text) <= excerptLength {
		return text
	}

	cut := []rune(text)[:excerptLength]
	for i := len(cut) - 1; i > excerptLength/2; i-- {
		if cut[i] == ' ' {
			cut = cut[:i]
			break
		}
	}
	return strings.TrimRight(string(cut), " ,.;:") + "…"
}
