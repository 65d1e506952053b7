// Package main provides a terminal client that logs in and prints live
// notifications pushed over the news WebSocket.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"press/internal/notifications"

	"github.com/gorilla/websocket"
)

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	username := flag.String("username", "", "Account username")
	password := flag.String("password", "password123", "Account password")
	token := flag.String("token", "", "Session token; skips login when set")
	flag.Parse()

	if *token == "" {
		if *username == "" {
			log.Fatal("either -token or -username is required")
		}
		var err error
		if *token, err = login(*host, *username, *password); err != nil {
			log.Fatalf("❌ Login failed: %v", err)
		}
		log.Printf("✅ Logged in as %s", *username)
	}

	u := url.URL{Scheme: "ws", Host: *host, Path: "/api/ws", RawQuery: url.Values{"token": {*token}}.Encode()}
	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("❌ Dial %s: %v", u.Host, err)
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = c.Close() }()
	log.Printf("📡 Watching news on %s", u.Host)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("read: %v", err)
				}
				return
			}
			printEvent(raw)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case <-done:
	case <-interrupt:
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func printEvent(raw []byte) {
	var ev notifications.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		fmt.Println(string(raw))
		return
	}
	payload, _ := json.Marshal(ev.Payload)
	at := ev.SentAt
	if at.IsZero() {
		at = time.Now()
	}
	fmt.Printf("[%s] %s %s\n", at.Local().Format(time.Kitchen), ev.Type, payload)
}

func login(host, username, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(fmt.Sprintf("http://%s/api/auth/login", host), "application/json", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Token, nil
}
