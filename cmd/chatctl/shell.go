package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"chatdesk/coordinator"
	"chatdesk/eventbus"
	"chatdesk/events"
	"chatdesk/internal/logger"
	"chatdesk/models"
)

const helpText = `Commands:
  /new [general|document]   start a new session
  /sessions                 list sessions
  /switch <n|id>            switch to a session
  /models                   list models
  /model <n|id>             select a model
  /upload <path>            upload a PDF into the current session
  /qa [n]                   generate n question/answer pairs
  /research <query>         research the current document
  /translate <language>     translate the current document
  /history                  print the current timeline
  /help                     show this help
  /quit                     exit
Anything else is sent as a chat message.
`

// shell is the interactive driver. Output from the notification listener and
// from commands is serialised through printf.
type shell struct {
	coord *coordinator.Coordinator
	bus   eventbus.EventBus

	mu  sync.Mutex
	out io.Writer
}

func newShell(coord *coordinator.Coordinator, bus eventbus.EventBus, out io.Writer) *shell {
	return &shell{coord: coord, bus: bus, out: out}
}

func (s *shell) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *shell) run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.listen(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	s.printf("chatctl - type /help for commands\n")
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		s.printf("> ")
		if !scanner.Scan() {
			break
		}
		quit, err := s.exec(ctx, scanner.Text())
		if err != nil && coordinator.KindOf(err) == "" {
			// coordinator failures already arrive as notifications
			s.printf("error: %v\n", err)
		}
		if quit || ctx.Err() != nil {
			break
		}
	}
	return scanner.Err()
}

func (s *shell) listen(ctx context.Context) {
	topic := eventbus.NewTopic(string(events.NotificationRaised))
	err := eventbus.SubscribeJSON(ctx, s.bus, topic, func(_ context.Context, n events.NotificationEvent, _ eventbus.Event) error {
		s.printf("[%s] %s\n", n.Level, n.Message)
		return nil
	})
	if err != nil {
		logger.DebugWithFields("notification listener stopped", logger.Fields{"error": err.Error()})
	}
}

// exec runs one input line.
func (s *shell) exec(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		reply, err := s.coord.SendMessage(ctx, line)
		if err != nil {
			return false, err
		}
		s.printMessage(reply)
		return false, nil
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		s.printf("%s", helpText)
	case "/new":
		mode := models.ModeGeneral
		if arg != "" {
			mode = models.ParseSessionMode(arg)
		}
		sess, err := s.coord.CreateSession(ctx, mode)
		if err != nil {
			return false, err
		}
		s.printf("now in %q [%s] %s\n", sess.Title, modeLabel(sess.Mode), sess.ID)
	case "/sessions":
		if err := s.coord.LoadSessions(ctx); err != nil {
			return false, err
		}
		s.mu.Lock()
		printSessions(s.out, s.coord.Snapshot())
		s.mu.Unlock()
	case "/switch":
		id, err := resolve(arg, s.sessionIDs())
		if err != nil {
			return false, err
		}
		if err := s.coord.SelectSession(ctx, id); err != nil {
			return false, err
		}
		s.printHistory()
	case "/models":
		if len(s.coord.Snapshot().Models) == 0 {
			if err := s.coord.LoadModels(ctx); err != nil {
				return false, err
			}
		}
		s.mu.Lock()
		printModels(s.out, s.coord.Snapshot())
		s.mu.Unlock()
	case "/model":
		id, err := resolve(arg, s.modelIDs())
		if err != nil {
			return false, err
		}
		if err := s.coord.SelectModel(ctx, id); err != nil {
			return false, err
		}
		s.printf("model: %s\n", id)
	case "/upload":
		if arg == "" {
			return false, fmt.Errorf("usage: /upload <path>")
		}
		f, err := os.Open(arg)
		if err != nil {
			return false, err
		}
		defer f.Close()
		resp, err := s.coord.UploadDocument(ctx, filepath.Base(arg), f)
		if err != nil {
			return false, err
		}
		s.printf("uploaded %s (%d pages)\n", resp.Document.Filename, resp.Document.Pages)
	case "/qa":
		n := 0
		if arg != "" {
			if n, err = strconv.Atoi(arg); err != nil {
				return false, fmt.Errorf("usage: /qa [n]")
			}
		}
		msg, err := s.coord.GenerateQA(ctx, n)
		if err != nil {
			return false, err
		}
		s.printMessage(msg)
	case "/research":
		msg, err := s.coord.Research(ctx, arg)
		if err != nil {
			return false, err
		}
		s.printMessage(msg)
	case "/translate":
		msg, err := s.coord.Translate(ctx, arg)
		if err != nil {
			return false, err
		}
		s.printMessage(msg)
	case "/history":
		s.printHistory()
	default:
		return false, fmt.Errorf("unknown command %s, try /help", cmd)
	}
	return false, nil
}

func (s *shell) printMessage(m models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	printMessage(s.out, m)
}

func (s *shell) printHistory() {
	snap := s.coord.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(snap.Messages) == 0 {
		fmt.Fprintln(s.out, "(no messages)")
		return
	}
	for _, m := range snap.Messages {
		printMessage(s.out, m)
	}
}

func (s *shell) sessionIDs() []string {
	snap := s.coord.Snapshot()
	ids := make([]string, len(snap.Sessions))
	for i, sess := range snap.Sessions {
		ids[i] = sess.ID
	}
	return ids
}

func (s *shell) modelIDs() []string {
	snap := s.coord.Snapshot()
	ids := make([]string, len(snap.Models))
	for i, m := range snap.Models {
		ids[i] = m.ID
	}
	return ids
}

// resolve accepts a 1-based list index or a literal id.
func resolve(arg string, ids []string) (string, error) {
	if arg == "" {
		return "", fmt.Errorf("missing argument")
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(ids) {
			return "", fmt.Errorf("no entry %d", n)
		}
		return ids[n-1], nil
	}
	return arg, nil
}
