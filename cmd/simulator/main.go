// Command simulator drives a running server with randomized social
// activity: it registers a population of users, then has them post, follow,
// like, comment and occasionally delete, reporting request stats at the end.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

type simConfig struct {
	ServerURL string
	NumUsers  int
	NumRounds int
}

type simUser struct {
	ID       string
	Username string
	Token    string

	mu      sync.Mutex
	postIDs []string
}

func (u *simUser) addPostID(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.postIDs = append(u.postIDs, id)
}

func (u *simUser) randomPostID() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.postIDs) == 0 {
		return ""
	}
	return u.postIDs[rand.Intn(len(u.postIDs))]
}

type simStats struct {
	mu        sync.Mutex
	requests  int
	errors    int
	conflicts int
	latencies []time.Duration
}

func (s *simStats) record(latency time.Duration, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	s.latencies = append(s.latencies, latency)
	if status == http.StatusConflict {
		s.conflicts++
	} else if status >= 400 {
		s.errors++
	}
}

func (s *simStats) summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total time.Duration
	for _, l := range s.latencies {
		total += l
	}
	avg := time.Duration(0)
	if len(s.latencies) > 0 {
		avg = total / time.Duration(len(s.latencies))
	}
	return fmt.Sprintf("%d requests, %d errors, %d conflicts, avg latency %v",
		s.requests, s.errors, s.conflicts, avg)
}

type simulator struct {
	config simConfig
	client *http.Client
	stats  *simStats
	users  []*simUser
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func main() {
	var config simConfig
	flag.StringVar(&config.ServerURL, "server", "http://localhost:8080", "server base URL")
	flag.IntVar(&config.NumUsers, "users", 10, "number of simulated users")
	flag.IntVar(&config.NumRounds, "rounds", 20, "activity rounds per user")
	flag.Parse()

	sim := &simulator{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
		stats:  &simStats{},
	}

	log.Printf("Starting simulation against %s: %d users, %d rounds",
		config.ServerURL, config.NumUsers, config.NumRounds)

	if err := sim.registerUsers(); err != nil {
		log.Fatalf("User registration failed: %v", err)
	}
	sim.runActivity()

	log.Printf("Simulation complete: %s", sim.stats.summary())
}

func (s *simulator) registerUsers() error {
	run := time.Now().UnixNano() % 100000
	for i := 0; i < s.config.NumUsers; i++ {
		body := map[string]string{
			"name":     fmt.Sprintf("Sim User %d", i),
			"username": fmt.Sprintf("sim_%d_%d", run, i),
			"mobileNo": fmt.Sprintf("9%05d%04d", run, i),
			"password": "simulated-password",
		}
		data, status, err := s.do("", http.MethodPost, "/api/auth/register", body)
		if err != nil {
			return err
		}
		if status != http.StatusCreated {
			return fmt.Errorf("register returned status %d", status)
		}

		var resp struct {
			Token string `json:"token"`
			User  struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			} `json:"user"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return err
		}
		s.users = append(s.users, &simUser{
			ID:       resp.User.ID,
			Username: resp.User.Username,
			Token:    resp.Token,
		})
	}
	log.Printf("Registered %d users", len(s.users))
	return nil
}

// runActivity has every user perform random actions concurrently, which
// also exercises the per-document serialization under contention.
func (s *simulator) runActivity() {
	var wg sync.WaitGroup
	for _, user := range s.users {
		wg.Add(1)
		go func(u *simUser) {
			defer wg.Done()
			for round := 0; round < s.config.NumRounds; round++ {
				s.act(u)
			}
		}(user)
	}
	wg.Wait()
}

func (s *simulator) act(u *simUser) {
	switch rand.Intn(10) {
	case 0, 1, 2:
		s.createPost(u)
	case 3, 4:
		s.likeRandomPost(u)
	case 5:
		s.unlikeRandomPost(u)
	case 6, 7:
		s.followRandomUser(u)
	case 8:
		s.commentRandomPost(u)
	default:
		s.saveRandomPost(u)
	}
}

func (s *simulator) createPost(u *simUser) {
	data, status, err := s.do(u.Token, http.MethodPost, "/api/posts", map[string]string{
		"content": fmt.Sprintf("Post from %s at %d", u.Username, time.Now().UnixMilli()),
	})
	if err != nil || status != http.StatusCreated {
		return
	}
	var post struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &post); err == nil && post.ID != "" {
		u.addPostID(post.ID)
	}
}

func (s *simulator) likeRandomPost(u *simUser) {
	if postID := s.randomPostID(); postID != "" {
		s.do(u.Token, http.MethodPost, "/api/posts/"+postID+"/like", nil)
	}
}

func (s *simulator) unlikeRandomPost(u *simUser) {
	if postID := s.randomPostID(); postID != "" {
		s.do(u.Token, http.MethodPost, "/api/posts/"+postID+"/unlike", nil)
	}
}

func (s *simulator) saveRandomPost(u *simUser) {
	if postID := s.randomPostID(); postID != "" {
		s.do(u.Token, http.MethodPost, "/api/posts/"+postID+"/save", nil)
	}
}

func (s *simulator) followRandomUser(u *simUser) {
	target := s.users[rand.Intn(len(s.users))]
	if target.ID == u.ID {
		return
	}
	s.do(u.Token, http.MethodPost, "/api/users/"+target.ID+"/follow", nil)
}

func (s *simulator) commentRandomPost(u *simUser) {
	if postID := s.randomPostID(); postID != "" {
		s.do(u.Token, http.MethodPost, "/api/posts/"+postID+"/comments", map[string]string{
			"body": fmt.Sprintf("Comment from %s", u.Username),
		})
	}
}

func (s *simulator) randomPostID() string {
	// Pick from another user's known posts to create cross-user traffic.
	for attempts := 0; attempts < 3; attempts++ {
		owner := s.users[rand.Intn(len(s.users))]
		if id := owner.randomPostID(); id != "" {
			return id
		}
	}
	return ""
}

// do sends one API request and records its latency and status. The data
// field of the response envelope is returned raw.
func (s *simulator) do(token, method, path string, body interface{}) (json.RawMessage, int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, 0, err
		}
	}

	req, err := http.NewRequest(method, s.config.ServerURL+path, &buf)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	s.stats.record(time.Since(start), resp.StatusCode)

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, resp.StatusCode, err
	}
	return envelope.Data, resp.StatusCode, nil
}
