package watch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ay9334524-ux/mecfinder-backend/internal/dispatch"
	"github.com/ay9334524-ux/mecfinder-backend/internal/events"
)

type eventMsg events.Event

type healthMsg struct {
	Status           string `json:"status"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	ActiveDispatches int    `json:"active_dispatches"`
	Subscribers      int    `json:"subscribers"`
}

type dispatchesMsg []dispatch.JobView

type tickMsg time.Time

type errMsg error

type sseDisconnectedMsg struct{ lastID int64 }
type reconnectMsg struct{}

// readSSE parses an SSE stream into ch until it ends, returning the last
// event id seen.
func readSSE(r io.Reader, lastID int64, ch chan<- events.Event) int64 {
	scanner := bufio.NewScanner(r)
	var id int64
	var typ, data string

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data != "" {
				ch <- events.Event{ID: id, Topic: events.OpsTopic, Type: typ, At: time.Now(), Data: []byte(data)}
				lastID = id
			}
			id, typ, data = 0, "", ""
		case strings.HasPrefix(line, ":"):
			// keep-alive comment
		case strings.HasPrefix(line, "id: "):
			if n, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
				id = n
			}
		case strings.HasPrefix(line, "event: "):
			typ = line[7:]
		case strings.HasPrefix(line, "data: "):
			data = line[6:]
		}
	}
	return lastID
}

// subscribeToEvents streams /events into ch, resuming after lastID.
// Returns sseDisconnectedMsg when the connection drops.
func subscribeToEvents(apiURL, token string, lastID int64, ch chan<- events.Event) tea.Cmd {
	return func() tea.Msg {
		req, err := http.NewRequest(http.MethodGet, apiURL+"/events", nil)
		if err != nil {
			return errMsg(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if lastID > 0 {
			req.Header.Set("Last-Event-ID", strconv.FormatInt(lastID, 10))
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return sseDisconnectedMsg{lastID: lastID}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return errMsg(fmt.Errorf("events: %s", resp.Status))
		}

		return sseDisconnectedMsg{lastID: readSSE(resp.Body, lastID, ch)}
	}
}

// receiveNextEvent waits for the next event from the channel.
func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

func getJSON(apiURL, path, token string, v any) error {
	client := &http.Client{Timeout: 2 * time.Second}
	req, err := http.NewRequest(http.MethodGet, apiURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func fetchHealth(apiURL, token string) tea.Msg {
	var h healthMsg
	if err := getJSON(apiURL, "/healthz", token, &h); err != nil {
		return errMsg(err)
	}
	return h
}

// fetchDispatches seeds the table with dispatches started before the
// stream was opened.
func fetchDispatches(apiURL, token string) tea.Msg {
	var resp struct {
		Dispatches []dispatch.JobView `json:"dispatches"`
	}
	if err := getJSON(apiURL, "/v1/dispatches", token, &resp); err != nil {
		return errMsg(err)
	}
	return dispatchesMsg(resp.Dispatches)
}
