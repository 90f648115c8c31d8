package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"undercity/internal/config"
)

// A minimal wandering agent: works when rested, rests when tired, and
// sometimes gambles a small cut of its cash. Useful for soaking a local
// server with plausible traffic.

type stateView struct {
	Agent struct {
		AgentID string `json:"agent_id"`
		Status  string `json:"status"`
		Cash    int64  `json:"cash"`
		Stamina int    `json:"stamina"`
		ZoneID  string `json:"zone_id"`
	} `json:"agent"`
	Jobs []struct {
		JobID       string `json:"job_id"`
		Wage        int64  `json:"wage"`
		StaminaCost int    `json:"stamina_cost"`
	} `json:"jobs"`
}

type actionSubmission struct {
	RequestID  string          `json:"request_id"`
	Action     string          `json:"action"`
	Args       json.RawMessage `json:"args,omitempty"`
	Reflection string          `json:"reflection"`
}

func main() {
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal(err)
	}
	client := &http.Client{Timeout: 10 * time.Second}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey, err = register(client, cfg.ServerURL, cfg.AgentName)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("registered as %s; api key: %s", cfg.AgentName, apiKey)
	}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	interval := time.Duration(cfg.PollSeconds) * time.Second
	for {
		st, err := fetchState(client, cfg.ServerURL, apiKey)
		if err != nil {
			log.Printf("state: %v", err)
			time.Sleep(interval)
			continue
		}
		if st.Agent.Status == "idle" {
			if err := act(client, cfg.ServerURL, apiKey, decide(rnd, st, cfg.MaxGambleCut)); err != nil {
				log.Printf("act: %v", err)
			}
		}
		time.Sleep(interval)
	}
}

func decide(rnd *rand.Rand, st *stateView, maxGambleCut int64) actionSubmission {
	reqID := fmt.Sprintf("drifter-%d", time.Now().UnixNano())
	if st.Agent.Stamina < 30 {
		return actionSubmission{
			RequestID:  reqID,
			Action:     "REST",
			Reflection: "running on fumes, need to lie low for a while",
		}
	}
	if maxGambleCut > 0 && st.Agent.Cash > 100 && rnd.Intn(5) == 0 {
		stake := st.Agent.Cash * maxGambleCut / 100
		if stake < 1 {
			stake = 1
		}
		args, _ := json.Marshal(map[string]int64{"amount": stake})
		return actionSubmission{
			RequestID:  reqID,
			Action:     "GAMBLE",
			Args:       args,
			Reflection: "feeling lucky tonight, just a small cut on the table",
		}
	}
	// Best wage available in the current zone.
	best := ""
	var bestWage int64 = -1
	for _, j := range st.Jobs {
		if j.StaminaCost <= st.Agent.Stamina && j.Wage > bestWage {
			best, bestWage = j.JobID, j.Wage
		}
	}
	if best != "" {
		args, _ := json.Marshal(map[string]string{"job_id": best})
		return actionSubmission{
			RequestID:  reqID,
			Action:     "WORK",
			Args:       args,
			Reflection: "honest money keeps the heat off while I get my bearings",
		}
	}
	return actionSubmission{
		RequestID:  reqID,
		Action:     "REST",
		Reflection: "nothing worth doing here, waiting it out instead",
	}
}

func register(client *http.Client, baseURL, name string) (string, error) {
	body, _ := json.Marshal(map[string]string{"name": name})
	resp, err := client.Post(baseURL+"/api/agents/register", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("register: status %d", resp.StatusCode)
	}
	var out struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.APIKey, nil
}

func fetchState(client *http.Client, baseURL, apiKey string) (*stateView, error) {
	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/agent/state", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("state: status %d", resp.StatusCode)
	}
	var st stateView
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

func act(client *http.Client, baseURL, apiKey string, sub actionSubmission) error {
	body, _ := json.Marshal(sub)
	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/agent/act", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var out struct {
		Outcome string `json:"outcome"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s rejected: %s", sub.Action, out.Error)
	}
	log.Printf("%s -> %s", sub.Action, out.Outcome)
	return nil
}
