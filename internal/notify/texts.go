package notify

import (
	"embed"
	"fmt"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

//go:embed locales/*.toml
var localesFS embed.FS

const (
	LanguageRu = "ru"
	LanguageEn = "en"
)

// Message kinds, also used as translation ids.
const (
	KindDeadlineReached = "deadline_reached"
	KindOverdue         = "overdue_assignee"
	KindEscalation      = "overdue_manager"
	KindAssigned        = "task_assigned"
	KindCreated         = "task_created_manager"
	KindPostponed       = "task_postponed_manager"
	KindCompleted       = "task_done_manager"
	KindReply           = "reply_forwarded"
)

// TaskView is the data every message template can use.
type TaskView struct {
	Ref         string
	Description string
	Deadline    string
	Owner       string
	Actor       string
	Reason      string
	OldDeadline string
	Delay       int
	Text        string
}

type Texts struct {
	bundle   *i18n.Bundle
	fallback string
	log      *zap.Logger
}

// NewTexts loads the embedded ru/en catalogues. Unknown languages fall back to
// defaultLang.
func NewTexts(defaultLang string, log *zap.Logger) (*Texts, error) {
	if log == nil {
		log = zap.NewNop()
	}
	bundle := i18n.NewBundle(language.Russian)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	files, err := localesFS.ReadDir("locales")
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if _, err := bundle.LoadMessageFileFS(localesFS, "locales/"+f.Name()); err != nil {
			return nil, fmt.Errorf("load %s: %w", f.Name(), err)
		}
	}
	if defaultLang == "" {
		defaultLang = LanguageRu
	}
	return &Texts{bundle: bundle, fallback: defaultLang, log: log}, nil
}

func (t *Texts) localizer(lang string) *i18n.Localizer {
	return i18n.NewLocalizer(t.bundle, lang, t.fallback)
}

// Render localizes id with data. A missing translation renders the id itself so a
// broken catalogue never blocks a reminder.
func (t *Texts) Render(lang, id string, data any) string {
	s, err := t.localizer(lang).Localize(&i18n.LocalizeConfig{MessageID: id, TemplateData: data})
	if err != nil {
		t.log.Warn("translation not found", zap.String("lang", lang), zap.String("message_id", id), zap.Error(err))
		return id
	}
	return s
}

// QuickActions are the buttons attached to deadline and overdue reminders.
func (t *Texts) QuickActions(lang, taskID string) []Action {
	actions := []Action{{Kind: ActionDone, Label: t.Render(lang, "action_done", nil), Data: "task_done:" + taskID}}
	for _, m := range SnoozeMinutes {
		actions = append(actions, Action{
			Kind:  ActionSnooze,
			Label: t.Render(lang, "action_snooze", map[string]any{"Minutes": m}),
			Data:  fmt.Sprintf("snooze:%s:%d", taskID, m),
		})
	}
	return append(actions,
		Action{Kind: ActionCustom, Label: t.Render(lang, "action_custom", nil), Data: "snooze_custom:" + taskID},
		Action{Kind: ActionPostpone, Label: t.Render(lang, "action_postpone", nil), Data: "postpone:" + taskID},
	)
}

// Build renders a message of the given kind. Reminders to the assignee carry
// quick actions.
func (t *Texts) Build(lang, kind, taskID string, v TaskView) Message {
	msg := Message{Kind: kind, TaskID: taskID, Text: strings.TrimSpace(t.Render(lang, kind, v))}
	switch kind {
	case KindDeadlineReached, KindOverdue:
		msg.Actions = t.QuickActions(lang, taskID)
	}
	return msg
}

// ShortRef is the compact task reference shown in messages.
func ShortRef(taskID string) string {
	if len(taskID) > 8 {
		return taskID[:8]
	}
	return taskID
}
