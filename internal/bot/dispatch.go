package bot

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"guildbot/internal/config"
	"guildbot/internal/transport"
	"guildbot/pkg/logx"
)

const genericFailure = "Something went wrong running that command. The incident has been logged."

// Command is one registered slash command.
type Command struct {
	Name        string
	Description string
	Handle      HandlerFunc

	// Autocomplete is optional. A registered command without one still gets
	// its autocomplete requests answered (with an empty list).
	Autocomplete func(ctx context.Context, req *Request) []transport.Choice
}

// ButtonRoute matches component custom ids by prefix. Routes are checked in
// registration order; first match wins.
type ButtonRoute struct {
	Prefix string

	// Command and Subcommand name the slash command whose reply carried the
	// button. Component interactions arrive without a command of their own,
	// so the route supplies the key that mirroring and logging use.
	Command    string
	Subcommand string

	Handle func(ctx context.Context, req *Request, payload string) error
}

// Request is the per-interaction context handed to handlers.
type Request struct {
	Update transport.Update
	Reply  *Reply
	Logger logx.Logger
	ReqID  string
}

// Router is the single entry point for inbound interactions.
type Router struct {
	log    logx.Logger
	pol    *config.PolicyManager
	mirror *Mirrorer

	cmds    map[string]Command
	buttons []ButtonRoute
	mw      []Middleware
}

func NewRouter(pol *config.PolicyManager, mirror *Mirrorer, log logx.Logger) *Router {
	rt := &Router{
		log:    log,
		pol:    pol,
		mirror: mirror,
		cmds:   make(map[string]Command),
	}
	rt.mw = []Middleware{
		MWPanicRecover(log),
		MWRequestLog(log),
		MWTimeout(10 * time.Second),
	}
	return rt
}

func (rt *Router) Register(cmds ...Command) {
	for _, c := range cmds {
		rt.cmds[c.Name] = c
	}
}

func (rt *Router) RegisterButtons(routes ...ButtonRoute) {
	rt.buttons = append(rt.buttons, routes...)
}

// Handle routes one update. It never panics and never blocks the caller's
// update loop beyond the handler itself.
func (rt *Router) Handle(ctx context.Context, upd transport.Update) {
	switch upd.Kind {
	case transport.UpdateCommand:
		rt.handleCommand(ctx, upd)
	case transport.UpdateAutocomplete:
		rt.handleAutocomplete(ctx, upd)
	case transport.UpdateComponent:
		rt.handleComponent(ctx, upd)
	default:
		rt.log.Warn("unknown update kind dropped", logx.String("kind", string(upd.Kind)))
	}
}

func (rt *Router) handleCommand(ctx context.Context, upd transport.Update) {
	cmd, ok := rt.cmds[upd.Command]
	if !ok {
		// A command registered on the platform but not here is a deploy bug,
		// not a user error. Log and drop.
		rt.log.Error("no handler for command", logx.String("cmd", upd.Command))
		return
	}

	req := rt.newRequest(upd)

	rule := rt.pol.Current().Access[upd.Command]
	if !Allowed(rule, upd) {
		if err := req.Reply.Send(ctx, "You are not allowed to use this command here."); err != nil {
			req.Logger.Warn("access-denied reply failed", logx.Err(err))
		}
		return
	}

	h := Chain(cmd.Handle, rt.mw...)
	if err := h(ctx, req); err != nil {
		rt.failGeneric(ctx, req)
	}
}

func (rt *Router) handleAutocomplete(ctx context.Context, upd transport.Update) {
	var choices []transport.Choice
	if cmd, ok := rt.cmds[upd.Command]; ok && cmd.Autocomplete != nil {
		choices = cmd.Autocomplete(ctx, rt.newRequest(upd))
	}
	// Always answer, even with nothing: an unanswered autocomplete request
	// times out on the platform side.
	if err := upd.Responder.Choices(ctx, choices); err != nil {
		rt.log.Warn("autocomplete response failed",
			logx.String("cmd", upd.Command), logx.Err(err))
	}
}

func (rt *Router) handleComponent(ctx context.Context, upd transport.Update) {
	for _, route := range rt.buttons {
		if !strings.HasPrefix(upd.ComponentID, route.Prefix) {
			continue
		}
		payload := strings.TrimPrefix(upd.ComponentID, route.Prefix)
		upd.Command = route.Command
		upd.Subcommand = route.Subcommand
		req := rt.newRequest(upd)
		h := Chain(func(ctx context.Context, req *Request) error {
			return route.Handle(ctx, req, payload)
		}, rt.mw...)
		if err := h(ctx, req); err != nil {
			rt.failGeneric(ctx, req)
		}
		return
	}

	// Stale control from an older deploy. Best-effort notice only.
	if err := upd.Responder.Reply(ctx, "This control is no longer supported.", true, nil); err != nil {
		rt.log.Debug("stale-component notice failed", logx.Err(err))
	}
}

func (rt *Router) newRequest(upd transport.Update) *Request {
	reqID := uuid.NewString()
	logger := rt.log.With(
		logx.String("req_id", reqID),
		logx.String("cmd", displayName(upd)),
		logx.String("user", upd.UserID),
	)
	return &Request{
		Update: upd,
		Reply:  rt.mirror.NewReply(rt.pol.Current().Mirror, upd, logger),
		Logger: logger,
		ReqID:  reqID,
	}
}

// failGeneric reports a handler failure to the user without leaking detail.
// If the handler already delivered its final reply, there is nothing sane to
// say on top of it; the error is already logged by the request middleware.
func (rt *Router) failGeneric(ctx context.Context, req *Request) {
	if req.Reply.Finished() {
		return
	}
	if err := req.Reply.Send(ctx, genericFailure); err != nil {
		req.Logger.Warn("failure reply failed", logx.Err(err))
	}
}
