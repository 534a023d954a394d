package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nikhilpandasgit/Threadbrain/internal/domain"
	"github.com/nikhilpandasgit/Threadbrain/internal/platform/retry"
)

var addr = flag.String("addr", "localhost:8080", "server address")

var dialPolicy = retry.Policy{
	MaxAttempts:      5,
	InitialBackoff:   500 * time.Millisecond,
	MaxBackoff:       5 * time.Second,
	RateLimitBackoff: 3 * time.Second,
	OnRetry: func(attempt int, err error, backoff time.Duration) {
		log.Printf("connect attempt %d failed (%v), retrying in %v", attempt, err, backoff)
	},
}

func main() {
	flag.Parse()

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}

	conn, err := dial(context.Background(), u)
	if err != nil {
		log.Fatalf("connect to %s: %v", u.String(), err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go readLoop(conn, done)

	lines := make(chan string)
	go readStdin(lines)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	fmt.Println("Type a message and press enter to chat. Ctrl-C to quit.")

	for {
		select {
		case <-done:
			return
		case line := <-lines:
			frame := domain.ClientFrame{Type: domain.FrameChat, Body: line}
			data, err := json.Marshal(frame)
			if err != nil {
				log.Printf("marshal: %v", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("write: %v", err)
				return
			}
		case <-interrupt:
			// Cleanly close the connection by sending a close message and
			// then waiting (with timeout) for the server to close it.
			err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Printf("write close: %v", err)
				return
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}

// dial connects with backoff. Capacity rejections are worth retrying,
// rate limit rejections wait longer, anything else a handshake refuses
// is permanent.
func dial(ctx context.Context, u url.URL) (*websocket.Conn, error) {
	var lastStatus int

	classify := func(err error) retry.Action {
		if !errors.Is(err, websocket.ErrBadHandshake) {
			return retry.Retry
		}
		switch lastStatus {
		case http.StatusServiceUnavailable:
			return retry.Retry
		case http.StatusTooManyRequests:
			return retry.After
		default:
			return retry.Stop
		}
	}

	return retry.Do(ctx, dialPolicy, classify, func() (*websocket.Conn, error) {
		conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
		lastStatus = 0
		if resp != nil {
			lastStatus = resp.StatusCode
			resp.Body.Close()
		}
		return conn, err
	})
}

func readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("read: %v", err)
			}
			return
		}
		printEvent(data)
	}
}

func readStdin(lines chan<- string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines <- line
	}
}

func printEvent(data []byte) {
	var head struct {
		Type domain.EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		fmt.Printf("?? %s\n", data)
		return
	}

	switch head.Type {
	case domain.EventWelcome:
		var e domain.WelcomeEvent
		if json.Unmarshal(data, &e) == nil {
			fmt.Printf("* connected as %s (%d online)\n", e.ClientID, e.ClientCount)
		}
	case domain.EventPresence:
		var e domain.PresenceEvent
		if json.Unmarshal(data, &e) == nil {
			verb := "joined"
			if e.Event == domain.PresenceLeave {
				verb = "left"
			}
			fmt.Printf("* %s %s (%d online)\n", e.ClientID, verb, e.ClientCount)
		}
	case domain.EventChat:
		var e domain.ChatEvent
		if json.Unmarshal(data, &e) == nil {
			fmt.Printf("[%s] %s\n", e.ClientID, e.Body)
		}
	case domain.EventThreadCreated, domain.EventThreadUpdated:
		var e domain.ThreadEvent
		if json.Unmarshal(data, &e) == nil {
			fmt.Printf("* thread %s: %q (%s)\n", strings.TrimPrefix(string(head.Type), "thread."), e.Thread.Title, e.Thread.ID)
		}
	case domain.EventThreadDeleted:
		var e domain.ThreadDeletedEvent
		if json.Unmarshal(data, &e) == nil {
			fmt.Printf("* thread deleted (%s)\n", e.ThreadID)
		}
	case domain.EventMessagePosted:
		var e domain.MessagePostedEvent
		if json.Unmarshal(data, &e) == nil {
			fmt.Printf("[thread %s] %s: %s\n", e.ThreadID, e.Message.Author, e.Message.Body)
		}
	case domain.EventError:
		var e domain.ErrorEvent
		if json.Unmarshal(data, &e) == nil {
			fmt.Printf("! %s: %s\n", e.Code, e.Message)
		}
	case domain.EventIdleWarning:
		fmt.Println("* idle, server will disconnect soon")
	default:
		fmt.Printf("?? %s\n", data)
	}
}
