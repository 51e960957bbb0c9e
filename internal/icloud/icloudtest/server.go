// Package icloudtest provides a fake iCloud server for tests.
package icloudtest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"icloud-photo-downloader/internal/icloud/api"
)

const (
	SessionID = "session-1"
	Scnt      = "scnt-1"
	DSID      = "12345"
)

// Photo is a library entry served by [Server].
type Photo struct {
	Name    string
	Created time.Time
	Data    []byte
	// NoOriginal omits the original resource from the master record.
	NoOriginal bool
	// FailDownload makes the download URL answer 500.
	FailDownload bool
}

// Server is a fake of the Apple ID, setup and photo database services. It
// accepts one account whose password is Password.
type Server struct {
	*httptest.Server

	Password  string
	Code      string
	TwoFactor bool
	// Indexing reports the library as not yet indexed.
	Indexing bool
	Photos   []Photo

	mu        sync.Mutex
	token     string
	verified  bool
	trusted   bool
	downloads int
	queries   int
}

// NewServer starts a Server that is closed when t finishes.
func NewServer(t testing.TB, photos ...Photo) *Server {
	t.Helper()
	s := &Server{
		Password: "secret",
		Code:     "123456",
		Photos:   photos,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /appleauth/auth/signin", s.signin)
	mux.HandleFunc("POST /appleauth/auth/verify/trusteddevice/securitycode", s.verify)
	mux.HandleFunc("GET /appleauth/auth/2sv/trust", s.trust)
	mux.HandleFunc("POST /setup/accountLogin", s.accountLogin)
	mux.HandleFunc("POST /ck/database/1/com.apple.photos.cloud/production/private/records/query", s.query)
	mux.HandleFunc("GET /download/{index}", s.download)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Config returns a client configuration pointing at the server.
func (s *Server) Config() api.Config {
	return api.Config{
		AuthEndpoint:  s.URL + "/appleauth/auth",
		SetupEndpoint: s.URL + "/setup",
		HomeEndpoint:  s.URL,
		MaxRetries:    0,
		PageSize:      2,
	}
}

// Downloads returns how many download requests were served.
func (s *Server) Downloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads
}

// Queries returns how many record queries were served.
func (s *Server) Queries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func serviceError(code, message string) map[string]any {
	return map[string]any{
		"service_errors": []map[string]string{{"code": code, "message": message}},
	}
}

func (s *Server) signin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AccountName string `json:"accountName"`
		Password    string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, serviceError("-20101", "bad request"))
		return
	}
	if body.AccountName == "" || body.Password != s.Password {
		writeJSON(w, http.StatusUnauthorized, serviceError("-20101", "Your Apple ID or password was incorrect."))
		return
	}
	s.mu.Lock()
	s.token = "token-1"
	pending := s.TwoFactor && !s.trusted
	s.mu.Unlock()

	w.Header().Set("X-Apple-ID-Session-Id", SessionID)
	w.Header().Set("scnt", Scnt)
	w.Header().Set("X-Apple-Session-Token", "token-1")
	w.Header().Set("X-Apple-ID-Account-Country", "USA")
	if pending {
		writeJSON(w, http.StatusConflict, map[string]string{"authType": "hsa2"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"authType": "hsa2"})
}

func (s *Server) accountLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"dsWebAuthToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || body.Token != s.token {
		writeJSON(w, 421, map[string]string{"error": "Missing X-APPLE-WEBAUTH-TOKEN cookie"})
		return
	}
	trusted := !s.TwoFactor || s.trusted
	writeJSON(w, http.StatusOK, map[string]any{
		"dsInfo": map[string]any{
			"dsid":       DSID,
			"fullName":   "Test User",
			"hsaVersion": 2,
		},
		"hsaChallengeRequired": !trusted,
		"hsaTrustedBrowser":    trusted,
		"webservices": map[string]any{
			api.PhotosService: map[string]string{"url": s.URL + "/ck", "status": "active"},
		},
	})
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Apple-ID-Session-Id") != SessionID || r.Header.Get("scnt") != Scnt {
		writeJSON(w, http.StatusForbidden, serviceError("-20001", "missing session headers"))
		return
	}
	var body struct {
		SecurityCode struct {
			Code string `json:"code"`
		} `json:"securityCode"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.SecurityCode.Code != s.Code {
		writeJSON(w, http.StatusBadRequest, serviceError("-21669", "Incorrect verification code."))
		return
	}
	s.mu.Lock()
	s.verified = true
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) trust(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.verified {
		writeJSON(w, http.StatusUnauthorized, serviceError("-20101", "not verified"))
		return
	}
	s.trusted = true
	s.token = "token-2"
	w.Header().Set("X-Apple-Session-Token", "token-2")
	w.Header().Set("X-Apple-TwoSV-Trust-Token", "trust-1")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("dsid") != DSID {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"reason": "unknown dsid"})
		return
	}
	var q api.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"reason": err.Error()})
		return
	}
	s.mu.Lock()
	s.queries++
	s.mu.Unlock()

	if q.Query.RecordType == "CheckIndexingState" {
		state := "FINISHED"
		if s.Indexing {
			state = "RUNNING"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"records": []map[string]any{{
				"recordName": "_",
				"recordType": "CheckIndexingState",
				"fields":     map[string]any{"state": map[string]any{"value": state}},
			}},
		})
		return
	}

	start := 0
	for _, f := range q.Query.FilterBy {
		if f.FieldName == "startRank" {
			_ = json.Unmarshal(f.FieldValue.Value, &start)
		}
	}
	limit := q.ResultsLimit / 2
	if limit <= 0 {
		limit = len(s.Photos)
	}
	records := []map[string]any{}
	for i := start; i < len(s.Photos) && i < start+limit; i++ {
		records = append(records, s.assetRecord(i), s.masterRecord(i))
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) masterRecord(i int) map[string]any {
	p := s.Photos[i]
	fields := map[string]any{
		"filenameEnc": map[string]any{
			"value": base64.StdEncoding.EncodeToString([]byte(p.Name)),
			"type":  "ENCRYPTED_BYTES",
		},
	}
	if !p.NoOriginal {
		fields["resOriginalRes"] = map[string]any{
			"value": map[string]any{
				"downloadURL": fmt.Sprintf("%s/download/%d", s.URL, i),
				"size":        len(p.Data),
			},
			"type": "ASSETID",
		}
	}
	return map[string]any{
		"recordName": fmt.Sprintf("master-%d", i),
		"recordType": api.RecordTypeMaster,
		"fields":     fields,
	}
}

func (s *Server) assetRecord(i int) map[string]any {
	p := s.Photos[i]
	return map[string]any{
		"recordName": fmt.Sprintf("asset-%d", i),
		"recordType": api.RecordTypeAsset,
		"fields": map[string]any{
			"assetDate": map[string]any{"value": p.Created.UnixMilli(), "type": "TIMESTAMP"},
			"masterRef": map[string]any{
				"value": map[string]any{"recordName": fmt.Sprintf("master-%d", i)},
				"type":  "REFERENCE",
			},
		},
	}
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(strings.TrimSpace(r.PathValue("index")))
	if err != nil || i < 0 || i >= len(s.Photos) {
		http.NotFound(w, r)
		return
	}
	s.mu.Lock()
	s.downloads++
	s.mu.Unlock()
	if s.Photos[i].FailDownload {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(s.Photos[i].Data)
}
