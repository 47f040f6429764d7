package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/germanamz/swchat/pkg/engine"
	"github.com/germanamz/swchat/pkg/sse"
)

type askOptions struct {
	Addr     string
	Question string
	WS       bool
	Raw      bool
	Out      io.Writer
	Client   *http.Client
}

var errNoQuestion = errors.New("ask: a question is required")

func runAsk(opts askOptions) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return ask(ctx, opts)
}

func ask(ctx context.Context, opts askOptions) error {
	if strings.TrimSpace(opts.Question) == "" {
		return errNoQuestion
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if !opts.Raw {
		initMarkdownRenderer(terminalWidth())
	}

	p := &printer{out: opts.Out, raw: opts.Raw}

	var err error
	if opts.WS {
		err = askWS(ctx, opts, p.handle)
	} else {
		err = askSSE(ctx, opts, p.handle)
	}
	if err != nil {
		return err
	}

	return p.finish()
}

// askSSE posts the question to /stream and feeds every event to fn.
func askSSE(ctx context.Context, opts askOptions, fn func(engine.Event) error) error {
	body, err := json.Marshal(map[string]string{"user_input": opts.Question})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(opts.Addr, "/")+"/stream", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", sse.ContentType)

	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	return sse.ReadJSON(ctx, resp.Body, fn)
}

// askWS sends the question over /ws and feeds every event to fn until the
// server closes the connection.
func askWS(ctx context.Context, opts askOptions, fn func(engine.Event) error) error {
	url := strings.TrimRight(opts.Addr, "/") + "/ws"
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPClient: opts.Client})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	defer func() { _ = conn.CloseNow() }()

	if err := wsjson.Write(ctx, conn, map[string]string{"user_input": opts.Question}); err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	for {
		var ev engine.Event
		err := wsjson.Read(ctx, conn, &ev)
		if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
			return nil
		}
		if err != nil {
			return fmt.Errorf("ask: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

func statusError(resp *http.Response) error {
	var body struct {
		Detail string `json:"detail"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &body) == nil && body.Detail != "" {
		return fmt.Errorf("ask: server returned %d: %s", resp.StatusCode, body.Detail)
	}
	return fmt.Errorf("ask: server returned %d", resp.StatusCode)
}

// printer renders streamed events. Raw mode writes deltas as they arrive;
// otherwise the answer is buffered and rendered as markdown once done.
type printer struct {
	out    io.Writer
	raw    bool
	answer strings.Builder
	done   bool
}

func (p *printer) handle(ev engine.Event) error {
	switch {
	case ev.Error != "":
		return fmt.Errorf("ask: %s", ev.Error)
	case ev.Delta != nil:
		p.answer.WriteString(*ev.Delta)
		if p.raw {
			_, err := io.WriteString(p.out, *ev.Delta)
			return err
		}
	case ev.ToolEvent != nil:
		line := formatToolEvent(ev.ToolEvent)
		if p.raw {
			line = "\n" + line
		} else {
			line = toolStyle.Render(line)
		}
		_, err := fmt.Fprintln(p.out, line)
		return err
	case ev.Done:
		p.done = true
	}
	return nil
}

func (p *printer) finish() error {
	if !p.done {
		return errors.New("ask: stream ended before done")
	}
	if p.raw {
		_, err := fmt.Fprintln(p.out)
		return err
	}
	_, err := fmt.Fprintln(p.out, answerPrefixStyle.Render("Answer > ")+renderMarkdown(p.answer.String()))
	return err
}

func formatToolEvent(te *engine.ToolEvent) string {
	if !te.Used {
		return treeCorner + "no tools used"
	}
	line := treeCorner + "used " + strings.Join(te.Names, ", ")
	if te.Truncated {
		line += " (round limit reached)"
	}
	return line
}
