package bot

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/internal/navigation"
	"github.com/m3rciful/storebot/internal/shop"
)

// Input is the message being routed together with the sender and its current step.
type Input struct {
	Message
	User    shop.User
	Step    navigation.Step
	Command string
	Args    string
}

func newInput(msg Message, user shop.User, step navigation.Step) *Input {
	in := &Input{Message: msg, User: user, Step: step}
	in.Text = strings.TrimSpace(msg.Text)
	in.Command, in.Args = parseCommand(in.Text)
	return in
}

// parseCommand splits "/cmd@botname args" into "/cmd" and "args".
func parseCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	head, args, _ := strings.Cut(text, " ")
	if at := strings.IndexByte(head, '@'); at > 0 {
		head = head[:at]
	}
	return strings.ToLower(head), strings.TrimSpace(args)
}

// HandlerFunc handles a routed message.
type HandlerFunc func(ctx context.Context, in *Input) error

// Predicate decides whether a rule accepts the message content.
type Predicate func(in *Input) bool

// Rule binds a predicate and a set of steps to a handler.
// An empty Steps set accepts any step, StepNone included.
type Rule struct {
	Name   string
	Steps  []navigation.Step
	Match  Predicate
	Handle HandlerFunc
}

func (r Rule) accepts(in *Input) bool {
	if len(r.Steps) > 0 && !slices.Contains(r.Steps, in.Step) {
		return false
	}
	return r.Match == nil || r.Match(in)
}

// Router evaluates rules in declaration order. The first accepting rule wins.
type Router struct {
	rules []Rule
	names map[string]struct{}
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{names: make(map[string]struct{})}
}

// Add appends rules. Rules without a name or handler and duplicate names are skipped.
func (r *Router) Add(rules ...Rule) *Router {
	for _, rule := range rules {
		if rule.Name == "" || rule.Handle == nil {
			logger.Warn(context.Background(), logger.CompBot, "router.rule.skip",
				slog.String("rule", rule.Name),
				slog.String("cause", "invalid"),
			)
			continue
		}
		if _, dup := r.names[rule.Name]; dup {
			logger.Warn(context.Background(), logger.CompBot, "router.rule.duplicate",
				slog.String("rule", rule.Name),
			)
			continue
		}
		r.names[rule.Name] = struct{}{}
		r.rules = append(r.rules, rule)
	}
	return r
}

// Resolve returns the first rule accepting in.
func (r *Router) Resolve(in *Input) (Rule, bool) {
	for _, rule := range r.rules {
		if rule.accepts(in) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Candidates lists the names of every rule accepting in, in evaluation order.
func (r *Router) Candidates(in *Input) []string {
	var names []string
	for _, rule := range r.rules {
		if rule.accepts(in) {
			names = append(names, rule.Name)
		}
	}
	return names
}

// Len returns the number of registered rules.
func (r *Router) Len() int { return len(r.rules) }

// TextIs matches any of the given button texts exactly.
func TextIs(values ...string) Predicate {
	return func(in *Input) bool {
		return in.Command == "" && slices.Contains(values, in.Text)
	}
}

// Command matches a slash command such as "/start".
func Command(name string) Predicate {
	name = strings.ToLower(name)
	return func(in *Input) bool { return in.Command == name }
}

// AnyText matches every non-empty text that is not a command.
func AnyText() Predicate {
	return func(in *Input) bool { return in.Text != "" && in.Command == "" }
}

// HasPhoto matches messages carrying a photo.
func HasPhoto() Predicate {
	return func(in *Input) bool { return in.PhotoFileID != "" }
}

// AdminOnly narrows p to senders flagged as admins.
func AdminOnly(p Predicate) Predicate {
	return func(in *Input) bool {
		if !in.User.IsAdmin {
			return false
		}
		return p == nil || p(in)
	}
}
