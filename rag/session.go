// Package rag answers questions over indexed documentation. A Session
// holds one conversation: its turn history and the set of chunks already
// shown to the model.
package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/ragdoc"
)

var _ ragdoc.Asker = (*Session)(nil)

const (
	// DefaultMaxTurns is the number of question/answer pairs kept in
	// history.
	DefaultMaxTurns = 10

	// DefaultMaxChunks applies when AskOptions.MaxChunks is not set.
	DefaultMaxChunks = 5

	// DefaultTimeout bounds a single generation call.
	DefaultTimeout = 60 * time.Second
)

// State is the stage a Session is in while answering.
type State int

const (
	StateIdle State = iota
	StateRetrieving
	StateGrounding
	StateGenerating
	StateRecording
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRetrieving:
		return "retrieving"
	case StateGrounding:
		return "grounding"
	case StateGenerating:
		return "generating"
	case StateRecording:
		return "recording"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Recorder persists turns as they are added to a Session's history.
type Recorder interface {
	Record(ctx context.Context, turn *ragdoc.Turn) error
}

// ConversationRecorder records turns into a stored conversation.
type ConversationRecorder struct {
	Service        ragdoc.ConversationService
	ConversationID string
}

// Record appends turn to the conversation.
func (r *ConversationRecorder) Record(ctx context.Context, turn *ragdoc.Turn) error {
	return r.Service.AppendTurn(ctx, r.ConversationID, turn)
}

// Session answers questions within one conversation. It is not safe for
// concurrent use; each conversation needs its own Session.
type Session struct {
	index        ragdoc.ChunkIndex
	generator    ragdoc.Generator
	recorder     Recorder
	systemPrompt string
	maxTurns     int
	timeout      time.Duration
	defaults     ragdoc.AskOptions
	now          func() time.Time

	state   State
	history []ragdoc.Turn
	used    map[string]struct{}
}

// Option configures a Session.
type Option func(*Session)

// WithRecorder persists every recorded turn through r.
func WithRecorder(r Recorder) Option {
	return func(s *Session) {
		s.recorder = r
	}
}

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(prompt string) Option {
	return func(s *Session) {
		s.systemPrompt = prompt
	}
}

// WithMaxTurns sets how many question/answer pairs history keeps.
func WithMaxTurns(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxTurns = n
		}
	}
}

// WithTimeout bounds each generation call.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithDefaults sets the retrieval options used for fields a question
// leaves unset.
func WithDefaults(opts ragdoc.AskOptions) Option {
	return func(s *Session) {
		s.defaults = opts
	}
}

// NewSession creates a Session retrieving from index and answering with
// generator.
func NewSession(index ragdoc.ChunkIndex, generator ragdoc.Generator, opts ...Option) *Session {
	s := &Session{
		index:        index,
		generator:    generator,
		systemPrompt: DefaultSystemPrompt,
		maxTurns:     DefaultMaxTurns,
		timeout:      DefaultTimeout,
		defaults:     ragdoc.AskOptions{MaxChunks: DefaultMaxChunks},
		now:          time.Now,
		used:         make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.history = []ragdoc.Turn{{Role: ragdoc.RoleSystem, Content: s.systemPrompt}}
	return s
}

// State returns the stage the session is in.
func (s *Session) State() State {
	return s.state
}

// Turns returns the question and answer turns in history, oldest first.
func (s *Session) Turns() []ragdoc.Turn {
	turns := make([]ragdoc.Turn, len(s.history)-1)
	copy(turns, s.history[1:])
	return turns
}

// ClearHistory drops every turn and forgets which chunks were shown.
func (s *Session) ClearHistory() {
	s.history = s.history[:1]
	s.used = make(map[string]struct{})
}

// Ask answers question from retrieved documentation. Retrieval and
// generation failures produce an apology answer with Err set; the turn is
// still recorded. The returned error reports an empty question or a
// failure to persist the turn.
func (s *Session) Ask(ctx context.Context, question string, opts ragdoc.AskOptions) (*ragdoc.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ragdoc.Errorf(ragdoc.EINVALID, "question is empty")
	}
	opts = s.withDefaults(opts)
	defer func() { s.state = StateIdle }()

	s.state = StateRetrieving
	results, err := s.index.Search(ctx, question, ragdoc.SearchOptions{
		SourceID:     opts.SourceID,
		Limit:        opts.MaxChunks,
		MinRelevance: opts.MinRelevance,
	})
	if err != nil {
		answer := &ragdoc.Answer{Text: ErrorAnswer, Err: err}
		return answer, s.record(ctx, question, "", answer, nil)
	}
	if len(results) == 0 {
		answer := &ragdoc.Answer{Text: InsufficientContextAnswer}
		return answer, s.record(ctx, question, "", answer, nil)
	}

	s.state = StateGrounding
	sources := make([]ragdoc.AnswerSource, len(results))
	urls := make(map[string]string)
	var fresh []*ragdoc.Chunk
	var hashes []string
	var total float64
	for i, r := range results {
		hash := ContentHash(r.Chunk)
		_, seen := s.used[hash]
		sources[i] = ragdoc.AnswerSource{
			Title:     title(r.Chunk),
			URL:       r.Chunk.Metadata.URL,
			Path:      r.Chunk.Metadata.Path,
			Content:   r.Chunk.Content,
			Relevance: r.Relevance,
			Hash:      hash,
			Seen:      seen,
		}
		if _, ok := urls[sources[i].Title]; !ok {
			urls[sources[i].Title] = sources[i].URL
		}
		if !seen {
			fresh = append(fresh, r.Chunk)
			hashes = append(hashes, hash)
		}
		total += r.Relevance
	}
	excerpts := grounding(fresh)

	s.state = StateGenerating
	text, err := s.generate(ctx, excerpts, question)
	if err != nil {
		answer := &ragdoc.Answer{Text: ErrorAnswer, Sources: sources, Err: err}
		return answer, s.record(ctx, question, excerpts, answer, nil)
	}

	answer := &ragdoc.Answer{
		Text:       linkCitations(text, urls),
		Sources:    sources,
		Confidence: total / float64(len(results)),
	}
	for _, h := range hashes {
		s.used[h] = struct{}{}
	}
	return answer, s.record(ctx, question, excerpts, answer, hashes)
}

func (s *Session) withDefaults(opts ragdoc.AskOptions) ragdoc.AskOptions {
	if opts.SourceID == "" {
		opts.SourceID = s.defaults.SourceID
	}
	if opts.MinRelevance == 0 {
		opts.MinRelevance = s.defaults.MinRelevance
	}
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = s.defaults.MaxChunks
	}
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = DefaultMaxChunks
	}
	return opts
}

// generate sends the system prompt, prior turns and the new question to
// the model under the session timeout.
func (s *Session) generate(ctx context.Context, excerpts, question string) (string, error) {
	messages := make([]ragdoc.Message, 0, len(s.history)+1)
	for _, t := range s.history {
		content := t.Content
		if t.Role == ragdoc.RoleUser && t.Context != "" {
			content = userPrompt(t.Context, t.Content)
		}
		messages = append(messages, ragdoc.Message{Role: t.Role, Content: content})
	}
	messages = append(messages, ragdoc.Message{Role: ragdoc.RoleUser, Content: userPrompt(excerpts, question)})

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.generator.Generate(gctx, messages)
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(gctx.Err(), context.DeadlineExceeded)) {
		return "", ragdoc.Errorf(ragdoc.EGENERATION, "generation timed out after %s", s.timeout)
	}
	if err != nil {
		return "", ragdoc.Errorf(ragdoc.EGENERATION, "generation failed: %v", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ragdoc.Errorf(ragdoc.EGENERATION, "model returned an empty answer")
	}
	return text, nil
}

// record appends the question and answer to history, prunes it and
// hands both turns to the recorder.
func (s *Session) record(ctx context.Context, question, excerpts string, answer *ragdoc.Answer, hashes []string) error {
	s.state = StateRecording
	now := s.now().UTC()
	user := ragdoc.Turn{Role: ragdoc.RoleUser, Content: question, Context: excerpts, CreatedAt: now}
	assistant := ragdoc.Turn{
		Role:        ragdoc.RoleAssistant,
		Content:     answer.Text,
		ChunkHashes: hashes,
		Confidence:  answer.Confidence,
		Sources:     answer.Sources,
		CreatedAt:   now,
	}
	s.history = append(s.history, user, assistant)
	s.prune()

	if s.recorder == nil {
		return nil
	}
	for _, t := range []*ragdoc.Turn{&user, &assistant} {
		if err := s.recorder.Record(ctx, t); err != nil {
			return fmt.Errorf("failed to record turn: %w", err)
		}
	}
	return nil
}

// prune keeps the system entry and the most recent maxTurns pairs.
func (s *Session) prune() {
	keep := 2 * s.maxTurns
	if len(s.history)-1 <= keep {
		return
	}
	recent := s.history[len(s.history)-keep:]
	s.history = append(s.history[:1:1], recent...)
}

// ContentHash identifies a chunk by its content and metadata. Metadata
// pairs are sorted so the hash does not depend on map order.
func ContentHash(c *ragdoc.Chunk) string {
	meta := c.Metadata.Map()
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := xxhash.New()
	_, _ = d.WriteString(c.Content)
	for _, k := range keys {
		_, _ = d.WriteString("\x00" + k + "=" + meta[k])
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
