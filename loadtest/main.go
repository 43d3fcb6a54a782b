// Command loadtest drives pairs of users through the full flow: sign-up,
// sign-in, open a private chat, then exchange messages over websocket.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	baseURL   = "http://localhost:8080"
	wsBase    = "ws://localhost:8080/ws/chat"
	pairCount = 50 // each pair is two users
	msgCount  = 20 // messages per user
)

type account struct {
	token string
	id    string
}

func main() {
	log.Printf("starting load test: %d users, %d messages each", pairCount*2, msgCount)
	var wg sync.WaitGroup
	for i := 0; i < pairCount; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(pairID)
		}(i)
	}
	wg.Wait()
	log.Println("load test complete")
}

func runPair(pairID int) {
	pass := "load-test-pass-123"
	a, err := authenticate(fmt.Sprintf("load_%d_a", pairID), pass)
	if err != nil {
		log.Printf("auth a failed [pair %d]: %v", pairID, err)
		return
	}
	b, err := authenticate(fmt.Sprintf("load_%d_b", pairID), pass)
	if err != nil {
		log.Printf("auth b failed [pair %d]: %v", pairID, err)
		return
	}

	chatID, err := openPrivateChat(a.token, b.id)
	if err != nil {
		log.Printf("open chat failed [pair %d]: %v", pairID, err)
		return
	}

	var wsWg sync.WaitGroup
	wsWg.Add(2)
	go spamChat(&wsWg, a.token, chatID, fmt.Sprintf("load_%d_a", pairID))
	go spamChat(&wsWg, b.token, chatID, fmt.Sprintf("load_%d_b", pairID))
	wsWg.Wait()
}

// authenticate signs the user up (already-taken is fine), signs in, then
// resolves its own id.
func authenticate(username, password string) (account, error) {
	postForm("/auth/sign-up", url.Values{
		"display_username": {username},
		"password":         {password},
		"repeat_password":  {password},
	})

	resp, err := postForm("/auth/sign-in", url.Values{
		"username": {username},
		"password": {password},
	})
	if err != nil {
		return account{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return account{}, fmt.Errorf("sign-in status %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return account{}, err
	}

	id, err := whoami(tok.AccessToken)
	if err != nil {
		return account{}, err
	}
	return account{token: tok.AccessToken, id: id}, nil
}

func whoami(token string) (string, error) {
	req, _ := http.NewRequest(http.MethodGet, baseURL+"/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var me struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return "", err
	}
	return me.UserID, nil
}

func openPrivateChat(token, recipientID string) (string, error) {
	req, _ := http.NewRequest(http.MethodPost, baseURL+"/chats/private/"+recipientID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("open chat status %d", resp.StatusCode)
	}

	var out struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ChatID, nil
}

func spamChat(wg *sync.WaitGroup, token, chatID, user string) {
	defer wg.Done()

	header := http.Header{"Authorization": {"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s/%s", wsBase, chatID), header)
	if err != nil {
		log.Printf("ws connect failed [%s]: %v", user, err)
		return
	}
	defer conn.Close()

	// Drain inbound frames so slow-reader eviction does not kick in.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for i := 0; i < msgCount; i++ {
		frame := map[string]string{
			"event":   "send_message",
			"payload": fmt.Sprintf("load test message %d from %s", i, user),
		}
		if err := conn.WriteJSON(frame); err != nil {
			log.Printf("send failed [%s]: %v", user, err)
			break
		}
		// Small delay so localhost does not serialize everything instantly.
		time.Sleep(10 * time.Millisecond)
	}
	log.Printf("%s finished sending %d messages", user, msgCount)
}

func postForm(endpoint string, form url.Values) (*http.Response, error) {
	return http.Post(baseURL+endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}
