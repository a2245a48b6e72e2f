package news

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/buyproxy/internal/config"
	"github.com/vasiliy-maslov/buyproxy/internal/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	maxItems          = 6
	maxDescriptionLen = 100
)

// keywords select articles related to overseas shopping and purchase proxying.
var keywords = []string{
	"구매대행", "해외직구", "직구", "해외쇼핑", "수입",
	"명품", "브랜드", "패션", "뷰티", "화장품",
	"스니커즈", "운동화", "한정판", "나이키", "아디다스",
	"애플", "아이폰", "갤럭시", "전자제품", "it",
	"쇼핑", "할인", "블랙프라이데이", "세일",
	"관세", "통관", "배송", "물류",
	"아마존", "이베이", "알리", "타오바오",
	"미국", "일본", "중국", "유럽", "독일", "영국", "프랑스",
	"환율", "달러", "엔화", "위안",
	"럭셔리", "샤넬", "구찌", "루이비통", "에르메스",
	"소비", "트렌드", "인기", "핫딜",
}

type Item struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Thumbnail   string `json:"thumbnail"`
	Description string `json:"description"`
	PubDate     string `json:"pubDate"`
}

type Digest struct {
	Items     []Item    `json:"items"`
	Timestamp time.Time `json:"timestamp"`
	HasNews   bool      `json:"hasNews"`
}

type Service interface {
	Digest(ctx context.Context) (*Digest, error)
}

type service struct {
	feedURL string
	ttl     time.Duration
	parser  *gofeed.Parser
	group   singleflight.Group
	now     func() time.Time

	mu        sync.RWMutex
	cached    *Digest
	fetchedAt time.Time
}

func NewService(cfg config.NewsConfig) Service {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: cfg.Timeout}
	return &service{
		feedURL: cfg.FeedURL,
		ttl:     cfg.CacheTTL,
		parser:  parser,
		now:     time.Now,
	}
}

// Digest serves the cached digest while it is fresh. Concurrent refreshes share one upstream fetch.
func (s *service) Digest(ctx context.Context) (*Digest, error) {
	s.mu.RLock()
	if s.cached != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		d := s.cached
		s.mu.RUnlock()
		return d, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.group.Do("digest", func() (interface{}, error) {
		d, err := s.fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cached, s.fetchedAt = d, s.now()
		s.mu.Unlock()
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Digest), nil
}

func (s *service) fetch(ctx context.Context) (*Digest, error) {
	feed, err := s.parser.ParseURLWithContext(s.feedURL, ctx)
	if err != nil {
		metrics.NewsFetches.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("feed_url", s.feedURL).Msg("news: failed to fetch feed")
		return nil, fmt.Errorf("news: failed to fetch feed: %w", err)
	}
	metrics.NewsFetches.WithLabelValues("ok").Inc()

	d := &Digest{Items: Select(feed), Timestamp: s.now().UTC()}
	d.HasNews = len(d.Items) > 0
	log.Debug().Int("items", len(feed.Items)).Int("selected", len(d.Items)).Msg("news: feed refreshed")
	return d, nil
}

// Select keeps related items that carry a title, link and thumbnail, in feed order, up to six.
func Select(feed *gofeed.Feed) []Item {
	items := make([]Item, 0, maxItems)
	for _, it := range feed.Items {
		if len(items) == maxItems {
			break
		}
		if !related(it.Title, it.Description) {
			continue
		}

		item := Item{
			Title:       strings.TrimSpace(it.Title),
			Link:        strings.TrimSpace(it.Link),
			Thumbnail:   thumbnail(feed, it),
			Description: truncate(strings.TrimSpace(it.Description), maxDescriptionLen),
			PubDate:     it.Published,
		}
		if item.Title == "" || item.Link == "" || item.Thumbnail == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}

func related(title, description string) bool {
	text := strings.ToLower(title + " " + description)
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func thumbnail(feed *gofeed.Feed, it *gofeed.Item) string {
	for _, enc := range it.Enclosures {
		if enc != nil && enc.URL != "" {
			return enc.URL
		}
	}
	if it.Image != nil && it.Image.URL != "" {
		return it.Image.URL
	}
	if feed.Image != nil {
		return feed.Image.URL
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
