package journal

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mosesmc52/journal-bot/internal/models"
	"github.com/mosesmc52/journal-bot/internal/store"
)

// Default identity constants
const (
	// DefaultBotName is the bot persona used as speaker on bot-authored entries.
	DefaultBotName = "Samantha"
	// DefaultUserName is the speaker recorded for the journaling user.
	DefaultUserName = "me"
	// DefaultCompletionCandidates is how many reply candidates to request from
	// the completion service before picking one at random.
	DefaultCompletionCandidates = 3
)

// questionAnswerSystemPrompt frames the persona for the question-answering flow.
const questionAnswerSystemPrompt = "You are Samantha, a warm personal journaling companion. " +
	"Answer the user's question briefly and kindly, in one or two sentences."

// closingWords end a collecting exchange on an exact match.
var closingWords = map[string]bool{
	"no":      true,
	"nothing": true,
	"none":    true,
}

// closingPhrases end a collecting exchange on a substring match.
var closingPhrases = []string{
	"nothing else",
	"i'm good",
	"im good",
}

// terminalWords end the whole dialogue regardless of the current step.
var terminalWords = map[string]bool{
	"bye":  true,
	"done": true,
}

// interrogatives classify a leading token as a question opener.
var interrogatives = map[string]bool{
	"who": true, "what": true, "when": true, "where": true, "why": true,
	"how": true, "which": true, "whose": true, "did": true,
}

// categoryKeywords route an unclassified message into a specific collecting
// category when it opens with one of these words (an optional trailing colon
// is allowed, e.g. "idea: solar birdhouse").
var categoryKeywords = map[string]models.Category{
	"experience": models.CategoryExperience,
	"idea":       models.CategoryIdea,
	"gratitude":  models.CategoryGratitude,
}

// Completer generates reply candidates for the question-answering flow.
type Completer interface {
	GenerateReplies(ctx context.Context, systemPrompt, userPrompt string, n int) ([]string, error)
}

// GIFSearcher looks up a GIF URL for a query. An empty URL means no result.
type GIFSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Archiver mirrors journal entries and media into the external document archive.
type Archiver interface {
	ArchiveEntry(ctx context.Context, speaker, text string, bot bool) error
	ArchiveMedia(ctx context.Context, srcURL, mimeType string) error
}

// Engine is the conversation state machine. All mutable state is scoped per
// session through the StateManager; the engine itself is safe to share.
type Engine struct {
	store     store.Store
	states    *StateManager
	cursor    *ReflectionCursor
	completer Completer
	gifs      GIFSearcher
	archiver  Archiver
	botName   string
	userName  string
	loc       *time.Location
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithBotName sets the bot speaker name.
func WithBotName(name string) EngineOption {
	return func(e *Engine) { e.botName = name }
}

// WithUserName sets the user speaker name.
func WithUserName(name string) EngineOption {
	return func(e *Engine) { e.userName = name }
}

// WithLocation sets the timezone used for period-of-day classification and
// daily gates.
func WithLocation(loc *time.Location) EngineOption {
	return func(e *Engine) { e.loc = loc }
}

// WithCompleter wires the completion service for the question-answering flow.
func WithCompleter(c Completer) EngineOption {
	return func(e *Engine) { e.completer = c }
}

// WithGIFSearcher wires the GIF lookup used to celebrate gratitude entries.
func WithGIFSearcher(g GIFSearcher) EngineOption {
	return func(e *Engine) { e.gifs = g }
}

// WithArchiver wires the external document archive.
func WithArchiver(a Archiver) EngineOption {
	return func(e *Engine) { e.archiver = a }
}

// WithReflectionCursor replaces the default reflection cursor.
func WithReflectionCursor(c *ReflectionCursor) EngineOption {
	return func(e *Engine) { e.cursor = c }
}

// NewEngine creates a conversation engine over the given store.
func NewEngine(st store.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    st,
		states:   NewStateManager(st),
		cursor:   NewReflectionCursor(),
		botName:  DefaultBotName,
		userName: DefaultUserName,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleInbound processes one user event and returns the reply instructions.
// Malformed events (missing body) are treated as empty input; handler faults
// surface as errors but must not crash the caller's loop.
func (e *Engine) HandleInbound(ctx context.Context, evt models.InboundMessage) ([]models.Action, error) {
	if evt.SessionID == "" {
		return nil, models.ErrEmptySessionID
	}

	body := strings.TrimSpace(evt.Body)
	normalized := strings.ToLower(body)
	slog.Debug("Engine handling inbound message", "sessionID", evt.SessionID, "body_length", len(body), "has_media", evt.MediaURL != "")

	step, err := e.states.CurrentStep(ctx, evt.SessionID)
	if err != nil {
		return nil, err
	}

	if terminalWords[normalized] {
		return e.handleTerminal(ctx, evt.SessionID, body)
	}

	switch step {
	case models.StepCollecting:
		return e.handleCollecting(ctx, evt, body, normalized)
	case models.StepReflectionCollecting:
		return e.handleReflectionAnswer(ctx, evt.SessionID, body)
	default:
		return e.handleFallback(ctx, evt.SessionID, body)
	}
}

// handleTerminal ends the dialogue and clears session-scoped state.
func (e *Engine) handleTerminal(ctx context.Context, sessionID, body string) ([]models.Action, error) {
	category := e.activeCategory(ctx, sessionID)
	if body != "" {
		if err := e.logMessage(ctx, e.userName, body, category, models.OriginHuman); err != nil {
			return nil, err
		}
	}
	if err := e.states.Reset(ctx, sessionID); err != nil {
		return nil, err
	}
	slog.Info("Engine dialogue ended", "sessionID", sessionID)
	return []models.Action{models.Say(Pick(farewells))}, nil
}

// handleCollecting processes input while collecting free-form entries.
func (e *Engine) handleCollecting(ctx context.Context, evt models.InboundMessage, body, normalized string) ([]models.Action, error) {
	category := e.activeCategory(ctx, evt.SessionID)

	// Media is archived before the closing-phrase check; attachment failures
	// must not block text logging.
	if evt.MediaURL != "" && e.archiver != nil {
		if err := e.archiver.ArchiveMedia(ctx, evt.MediaURL, evt.MediaType); err != nil {
			slog.Warn("Engine media archive failed, continuing", "error", err, "sessionID", evt.SessionID, "url", evt.MediaURL)
		}
	}

	if body == "" || e.isClosingPhrase(normalized) {
		if body != "" {
			if err := e.logMessage(ctx, e.userName, body, category, models.OriginHuman); err != nil {
				return nil, err
			}
		}
		return e.closeExchange(ctx, evt.SessionID, category)
	}

	if err := e.logMessage(ctx, e.userName, body, category, models.OriginHuman); err != nil {
		return nil, err
	}
	// Self-loop: stay in collecting and wait for the next message.
	return []models.Action{models.Say(Pick(continuationPrompts))}, nil
}

// closeExchange emits the closing remark, offering a reflection question when
// the user has not reflected today and unseen questions remain.
func (e *Engine) closeExchange(ctx context.Context, sessionID string, category models.Category) ([]models.Action, error) {
	actions := []models.Action{models.Say(Pick(closingRemarks))}

	if question, ok := e.nextReflectionQuestion(ctx); ok {
		if err := e.logMessage(ctx, e.botName, question, models.CategoryReflection, models.OriginBot); err != nil {
			return nil, err
		}
		if err := e.states.SetStep(ctx, sessionID, models.StepReflectionCollecting); err != nil {
			return nil, err
		}
		actions = append(actions, models.Say(question))
		return actions, nil
	}

	if category == models.CategoryGratitude && e.gifs != nil {
		if url, err := e.gifs.Search(ctx, "thank you"); err != nil {
			slog.Warn("Engine GIF lookup failed, skipping", "error", err, "sessionID", sessionID)
		} else if url != "" {
			actions = append(actions, models.ShowMedia(url))
		}
	}

	if err := e.states.SetStep(ctx, sessionID, models.StepIdle); err != nil {
		return nil, err
	}
	return actions, nil
}

// handleReflectionAnswer records a reflection answer and returns to idle.
func (e *Engine) handleReflectionAnswer(ctx context.Context, sessionID, body string) ([]models.Action, error) {
	if body != "" {
		if err := e.logMessage(ctx, e.userName, body, models.CategoryReflection, models.OriginHuman); err != nil {
			return nil, err
		}
	}
	if err := e.states.SetStep(ctx, sessionID, models.StepIdle); err != nil {
		return nil, err
	}
	return []models.Action{models.Say(Pick(reflectionAcks))}, nil
}

// handleFallback classifies unrouted free text: a leading category keyword
// starts a collecting exchange under that category, questions go to the
// question-answering flow, anything else collects as uncategorized.
func (e *Engine) handleFallback(ctx context.Context, sessionID, body string) ([]models.Action, error) {
	if body == "" {
		return []models.Action{models.Say(Pick(closingRemarks))}, nil
	}

	if category, rest, ok := splitCategoryKeyword(body); ok {
		if rest == "" {
			return e.StartCollecting(ctx, sessionID, category)
		}
		if _, err := e.StartCollecting(ctx, sessionID, category); err != nil {
			return nil, err
		}
		if err := e.logMessage(ctx, e.userName, rest, category, models.OriginHuman); err != nil {
			return nil, err
		}
		return []models.Action{models.Say(Pick(continuationPrompts))}, nil
	}

	if isQuestion(body) {
		return e.answerQuestion(ctx, sessionID, body)
	}

	if err := e.states.SetData(ctx, sessionID, models.DataKeyActiveCategory, string(models.CategoryUncategorized)); err != nil {
		return nil, err
	}
	if err := e.logMessage(ctx, e.userName, body, models.CategoryUncategorized, models.OriginHuman); err != nil {
		return nil, err
	}
	if err := e.states.SetStep(ctx, sessionID, models.StepCollecting); err != nil {
		return nil, err
	}
	return []models.Action{models.Say(Pick(continuationPrompts))}, nil
}

// answerQuestion routes a question through the completion service.
func (e *Engine) answerQuestion(ctx context.Context, sessionID, body string) ([]models.Action, error) {
	if err := e.logMessage(ctx, e.userName, body, models.CategoryUncategorized, models.OriginHuman); err != nil {
		return nil, err
	}

	answer := ""
	if e.completer != nil {
		candidates, err := e.completer.GenerateReplies(ctx, questionAnswerSystemPrompt, body, DefaultCompletionCandidates)
		if err != nil {
			slog.Warn("Engine completion failed, using fallback answer", "error", err, "sessionID", sessionID)
		} else {
			answer = Pick(candidates)
		}
	}
	if answer == "" {
		answer = Pick(fallbackAnswers)
	}

	if err := e.logMessage(ctx, e.botName, answer, models.CategoryUncategorized, models.OriginBot); err != nil {
		return nil, err
	}
	return []models.Action{models.Say(answer)}, nil
}

// StartCheckIn begins a greeting exchange for a session without waiting for
// an inbound message. This is the sole system-initiated event, driven by the
// reminder scheduler.
func (e *Engine) StartCheckIn(ctx context.Context, sessionID string) ([]models.Action, error) {
	greeting := Greeting(PeriodAt(time.Now().In(e.loc)))
	prompt := Pick(checkinPrompts)

	if err := e.logMessage(ctx, e.botName, greeting, models.CategoryExperience, models.OriginBot); err != nil {
		return nil, err
	}
	if err := e.states.SetData(ctx, sessionID, models.DataKeyActiveCategory, string(models.CategoryExperience)); err != nil {
		return nil, err
	}
	if err := e.states.SetStep(ctx, sessionID, models.StepCollecting); err != nil {
		return nil, err
	}
	slog.Info("Engine check-in started", "sessionID", sessionID)
	return []models.Action{models.Say(greeting), models.Say(prompt)}, nil
}

// StartCollecting begins a collecting exchange under an explicit category,
// reached by the keyword routing in handleFallback (e.g. "idea: ..." or
// "gratitude: ...").
func (e *Engine) StartCollecting(ctx context.Context, sessionID string, category models.Category) ([]models.Action, error) {
	if !models.IsValidCategory(category) {
		return nil, models.ErrInvalidCategory
	}
	if err := e.states.SetData(ctx, sessionID, models.DataKeyActiveCategory, string(category)); err != nil {
		return nil, err
	}
	if err := e.states.SetStep(ctx, sessionID, models.StepCollecting); err != nil {
		return nil, err
	}
	return []models.Action{models.Say(Pick(checkinPrompts))}, nil
}

// StartReflection asks the next unseen reflection question. When the list is
// exhausted it returns no actions and no error.
func (e *Engine) StartReflection(ctx context.Context, sessionID string) ([]models.Action, error) {
	question, ok := e.nextReflectionQuestion(ctx)
	if !ok {
		slog.Debug("Engine reflection questions exhausted or already answered today", "sessionID", sessionID)
		return nil, nil
	}
	if err := e.logMessage(ctx, e.botName, question, models.CategoryReflection, models.OriginBot); err != nil {
		return nil, err
	}
	if err := e.states.SetStep(ctx, sessionID, models.StepReflectionCollecting); err != nil {
		return nil, err
	}
	return []models.Action{models.Say(question)}, nil
}

// HasJournaledToday reports whether any human entry was recorded today,
// used to suppress duplicate daily reminders. Bot-authored messages (greetings,
// scheduled reflection questions) do not count.
func (e *Engine) HasJournaledToday(ctx context.Context) (bool, error) {
	return e.store.HasActivitySince(startOfDay(time.Now().In(e.loc)), "", models.OriginHuman)
}

// nextReflectionQuestion returns the next unseen question, gated by whether a
// reflection entry was already recorded today.
func (e *Engine) nextReflectionQuestion(ctx context.Context) (string, bool) {
	reflectedToday, err := e.store.HasActivitySince(startOfDay(time.Now().In(e.loc)), models.CategoryReflection, "")
	if err != nil {
		slog.Warn("Engine reflection gate query failed, skipping reflection", "error", err)
		return "", false
	}
	if reflectedToday {
		return "", false
	}

	consumed, err := e.store.CountMessages(models.CategoryReflection, models.OriginHuman)
	if err != nil {
		slog.Warn("Engine reflection count query failed, skipping reflection", "error", err)
		return "", false
	}
	return e.cursor.Next(consumed)
}

// activeCategory reads the category the session is collecting under,
// defaulting to uncategorized.
func (e *Engine) activeCategory(ctx context.Context, sessionID string) models.Category {
	raw, err := e.states.GetData(ctx, sessionID, models.DataKeyActiveCategory)
	if err != nil || raw == "" {
		return models.CategoryUncategorized
	}
	category := models.Category(raw)
	if !models.IsValidCategory(category) {
		return models.CategoryUncategorized
	}
	return category
}

// logMessage appends one entry to the message log and mirrors it into the
// archive when configured. Archive failures are logged and do not block.
func (e *Engine) logMessage(ctx context.Context, speaker, body string, category models.Category, origin models.Origin) error {
	m := models.Message{
		Speaker:   speaker,
		Body:      body,
		Category:  category,
		Origin:    origin,
		CreatedAt: time.Now(),
	}
	if err := e.store.AddMessage(m); err != nil {
		slog.Error("Engine failed to append message", "error", err, "speaker", speaker, "category", category)
		return err
	}
	if e.archiver != nil {
		if err := e.archiver.ArchiveEntry(ctx, speaker, body, origin == models.OriginBot); err != nil {
			slog.Warn("Engine archive append failed, continuing", "error", err, "speaker", speaker)
		}
	}
	return nil
}

// isClosingPhrase reports whether normalized input ends a collecting exchange.
func (e *Engine) isClosingPhrase(normalized string) bool {
	if closingWords[normalized] {
		return true
	}
	for _, phrase := range closingPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

// splitCategoryKeyword reports whether free text opens with a category
// keyword, returning the category and the remaining entry text.
func splitCategoryKeyword(body string) (models.Category, string, bool) {
	keyword, rest, _ := strings.Cut(body, " ")
	keyword = strings.TrimSuffix(strings.ToLower(keyword), ":")
	category, ok := categoryKeywords[keyword]
	if !ok {
		return "", "", false
	}
	return category, strings.TrimSpace(rest), true
}

// isQuestion classifies free text as a question by its first token or a
// question mark anywhere in the text.
func isQuestion(body string) bool {
	if strings.Contains(body, "?") {
		return true
	}
	fields := strings.Fields(strings.ToLower(body))
	if len(fields) == 0 {
		return false
	}
	return interrogatives[fields[0]]
}
