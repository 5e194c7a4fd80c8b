package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/novamart/nova-storefront/internal/llm"
	"github.com/novamart/nova-storefront/internal/model"
	"github.com/novamart/nova-storefront/pkg/logger"
	"github.com/novamart/nova-storefront/pkg/metrics"
)

const (
	qaCacheTTL = 60 * time.Second
	qaMaxHits  = 5
)

// NoMatchText is returned when nothing in the knowledge base scores.
const NoMatchText = "I couldn't find a direct answer in site content. Try rephrasing or ask about products."

// kbDoc is one searchable document.
type kbDoc struct {
	ID    string
	Title string
	Text  string
}

type qaCacheEntry struct {
	at      time.Time
	answers []model.Answer
}

// QAService answers questions by keyword-scoring a knowledge base built
// from the product catalog plus trained documents. An optional LLM
// client is consulted when the scorer finds nothing.
type QAService struct {
	catalog  *CatalogService
	fallback llm.Client
	logger   *logger.Logger

	mu      sync.Mutex
	trained []kbDoc
	cache   map[string]qaCacheEntry
	now     func() time.Time
}

// NewQAService creates a QA service. fallback may be nil.
func NewQAService(catalog *CatalogService, fallback llm.Client, log *logger.Logger) *QAService {
	return &QAService{
		catalog:  catalog,
		fallback: fallback,
		logger:   log,
		cache:    make(map[string]qaCacheEntry),
		now:      time.Now,
	}
}

// Train adds one document to the knowledge base and drops the cache so
// new content is visible to the next question.
func (s *QAService) Train(ctx context.Context, req *model.TrainRequest) {
	title := req.Title
	if title == "" {
		title = "KB"
	}
	s.mu.Lock()
	s.trained = append(s.trained, kbDoc{
		ID:    fmt.Sprintf("kb:%d", len(s.trained)),
		Title: title,
		Text:  req.Text,
	})
	s.cache = make(map[string]qaCacheEntry)
	s.mu.Unlock()

	s.logger.Info("knowledge base document added", zap.String("title", title))
}

// Answer resolves a question. Answers are cached per normalized question
// for 60 seconds.
func (s *QAService) Answer(ctx context.Context, question string) []model.Answer {
	start := s.now()
	defer func() {
		metrics.QADuration.Observe(s.now().Sub(start).Seconds())
	}()

	key := strings.ToLower(strings.TrimSpace(question))
	if key == "" {
		return []model.Answer{}
	}

	s.mu.Lock()
	if entry, ok := s.cache[key]; ok {
		if s.now().Sub(entry.at) < qaCacheTTL {
			s.mu.Unlock()
			metrics.QAQueriesTotal.WithLabelValues("cache_hit").Inc()
			return entry.answers
		}
		delete(s.cache, key)
	}
	s.mu.Unlock()

	answers := s.score(ctx, key)
	if len(answers) == 0 {
		if fb := s.askFallback(ctx, question); fb != nil {
			answers = fb
		} else {
			return []model.Answer{{Text: NoMatchText, Title: "No match", Score: 0}}
		}
	}

	s.mu.Lock()
	s.cache[key] = qaCacheEntry{at: s.now(), answers: answers}
	s.mu.Unlock()

	metrics.QAQueriesTotal.WithLabelValues("remote").Inc()
	return answers
}

// score counts question words appearing in each document's text.
func (s *QAService) score(ctx context.Context, key string) []model.Answer {
	words := splitWords(key)
	if len(words) == 0 {
		return nil
	}

	docs := s.documents(ctx)
	type hit struct {
		doc   kbDoc
		score int
	}
	var hits []hit
	for _, d := range docs {
		txt := strings.ToLower(d.Text)
		score := 0
		for _, w := range words {
			if strings.Contains(txt, w) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, hit{doc: d, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > qaMaxHits {
		hits = hits[:qaMaxHits]
	}

	answers := make([]model.Answer, 0, len(hits))
	for _, h := range hits {
		answers = append(answers, model.Answer{
			Text:     h.doc.Text,
			Title:    h.doc.Title,
			SourceID: h.doc.ID,
			Score:    float64(h.score),
		})
	}
	return answers
}

func (s *QAService) documents(ctx context.Context) []kbDoc {
	var docs []kbDoc
	for _, p := range s.catalog.List(ctx) {
		docs = append(docs, kbDoc{
			ID:    "product:" + p.ID,
			Title: p.Title,
			Text:  fmt.Sprintf("%s %s price %.2f", p.Title, p.Description, p.Price),
		})
	}
	s.mu.Lock()
	docs = append(docs, s.trained...)
	s.mu.Unlock()
	return docs
}

func (s *QAService) askFallback(ctx context.Context, question string) []model.Answer {
	if s.fallback == nil {
		return nil
	}

	resp, err := s.fallback.Complete(ctx, &llm.CompletionRequest{
		Messages: []llm.ChatMessage{
			{Role: "system", Content: "You are a storefront assistant. Answer briefly using general product knowledge."},
			{Role: "user", Content: question},
		},
	})
	if err != nil {
		metrics.LLMFallbacksTotal.WithLabelValues(s.fallback.Name(), "error").Inc()
		s.logger.Warn("llm fallback failed", zap.Error(err))
		return nil
	}

	metrics.LLMFallbacksTotal.WithLabelValues(s.fallback.Name(), "ok").Inc()
	return []model.Answer{{Text: resp.Content, Title: "Assistant", SourceID: "llm:" + s.fallback.Name(), Score: 0}}
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9')
	})
}
