package api_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"icloud-photo-downloader/internal/icloud/api"
	"icloud-photo-downloader/internal/icloud/icloudtest"
)

func TestConfig_HydrateFromEnv(t *testing.T) {
	t.Setenv("ICLOUD_AUTH_ENDPOINT", "http://auth.example")
	t.Setenv("ICLOUD_SETUP_ENDPOINT", "http://setup.example")
	conf := api.DefaultConfig()
	conf.HydrateFromEnv()
	if conf.AuthEndpoint != "http://auth.example" {
		t.Fatalf("expected auth endpoint from env, got %q", conf.AuthEndpoint)
	}
	if conf.SetupEndpoint != "http://setup.example" {
		t.Fatalf("expected setup endpoint from env, got %q", conf.SetupEndpoint)
	}
	if conf.HomeEndpoint != api.DefaultHomeEndpoint {
		t.Fatalf("expected default home endpoint, got %q", conf.HomeEndpoint)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	client := api.NewClient(api.Config{AuthEndpoint: "http://auth.example/", PageSize: -1})
	conf := client.Config()
	if conf.AuthEndpoint != "http://auth.example" {
		t.Fatalf("expected trailing slash to be trimmed, got %q", conf.AuthEndpoint)
	}
	if conf.SetupEndpoint != api.DefaultSetupEndpoint {
		t.Fatalf("expected default setup endpoint, got %q", conf.SetupEndpoint)
	}
	if conf.PageSize != api.DefaultPageSize {
		t.Fatalf("expected default page size, got %d", conf.PageSize)
	}
	if client.Authenticated() {
		t.Fatal("a new client should not be authenticated")
	}
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	srv := icloudtest.NewServer(t)
	client := api.NewClient(srv.Config())
	err := client.SignIn(context.Background(), "me@example.com", "wrong")
	if !errors.Is(err, api.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if client.Authenticated() {
		t.Fatal("client should not be authenticated")
	}
}

func TestAccountLogin_WithoutSignIn(t *testing.T) {
	srv := icloudtest.NewServer(t)
	client := api.NewClient(srv.Config())
	if _, err := client.AccountLogin(context.Background()); !errors.Is(err, api.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestTwoFactorFlow(t *testing.T) {
	srv := icloudtest.NewServer(t)
	srv.TwoFactor = true
	client := api.NewClient(srv.Config())
	ctx := context.Background()

	if err := client.SignIn(ctx, "me@example.com", srv.Password); err != nil {
		t.Fatalf("a pending second factor should not fail sign in: %v", err)
	}
	info, err := client.AccountLogin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !info.RequiresTwoFactor() {
		t.Fatal("expected two-factor to be required")
	}

	ok, err := client.VerifySecurityCode(ctx, "000000")
	if err != nil {
		t.Fatalf("a rejected code should not be an error: %v", err)
	}
	if ok {
		t.Fatal("expected the wrong code to be rejected")
	}

	ok, err = client.VerifySecurityCode(ctx, srv.Code)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected the code to be accepted")
	}
	if err := client.TrustSession(ctx); err != nil {
		t.Fatal(err)
	}
	info, err = client.AccountLogin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if info.RequiresTwoFactor() {
		t.Fatal("expected the trusted session not to require two-factor")
	}
}

func TestListPhotoRecords(t *testing.T) {
	created := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	srv := icloudtest.NewServer(t,
		icloudtest.Photo{Name: "IMG_0001.JPG", Created: created, Data: []byte("one")},
		icloudtest.Photo{Name: "IMG_0002.JPG", Created: created, Data: []byte("two")},
		icloudtest.Photo{Name: "IMG_0003.JPG", Created: created, Data: []byte("three")},
	)
	client := api.NewClient(srv.Config())
	ctx := context.Background()
	if err := client.SignIn(ctx, "me@example.com", srv.Password); err != nil {
		t.Fatal(err)
	}
	info, err := client.AccountLogin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	endpoint := api.PhotosEndpoint(info)
	if endpoint == "" {
		t.Fatal("expected a photos endpoint")
	}
	if err := client.CheckIndexingState(ctx, endpoint); err != nil {
		t.Fatal(err)
	}

	records, err := client.ListPhotoRecords(ctx, endpoint, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 1 asset and 1 master record, got %d", len(records))
	}
	var master api.Record
	for _, r := range records {
		if r.RecordType == api.RecordTypeMaster {
			master = r
		}
	}
	res, ok := master.Resource("resOriginalRes")
	if !ok {
		t.Fatal("expected an original resource")
	}
	body, err := client.Download(ctx, res.DownloadURL)
	if err != nil {
		t.Fatal(err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "three" {
		t.Fatalf(`expected "three", got %q`, data)
	}
}

func TestDownload_FailureNamesURLOnce(t *testing.T) {
	srv := icloudtest.NewServer(t, icloudtest.Photo{Name: "a.jpg", FailDownload: true})
	client := api.NewClient(srv.Config())
	ctx := context.Background()
	if err := client.SignIn(ctx, "me@example.com", srv.Password); err != nil {
		t.Fatal(err)
	}
	info, err := client.AccountLogin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	records, err := client.ListPhotoRecords(ctx, api.PhotosEndpoint(info), 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	var res api.Resource
	for _, r := range records {
		if r.RecordType == api.RecordTypeMaster {
			res, _ = r.Resource("resOriginalRes")
		}
	}
	if res.DownloadURL == "" {
		t.Fatal("expected a download URL")
	}

	_, err = client.Download(ctx, res.DownloadURL)
	if err == nil {
		t.Fatal("expected the download to fail")
	}
	if got := strings.Count(err.Error(), res.DownloadURL); got != 1 {
		t.Fatalf("expected the URL once in %q, found it %d times", err, got)
	}
}

func TestCheckIndexingState_Indexing(t *testing.T) {
	srv := icloudtest.NewServer(t)
	srv.Indexing = true
	client := api.NewClient(srv.Config())
	ctx := context.Background()
	if err := client.SignIn(ctx, "me@example.com", srv.Password); err != nil {
		t.Fatal(err)
	}
	info, err := client.AccountLogin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.CheckIndexingState(ctx, api.PhotosEndpoint(info)); !errors.Is(err, api.ErrIndexing) {
		t.Fatalf("expected ErrIndexing, got %v", err)
	}
}

func TestRecordFields(t *testing.T) {
	r := api.Record{Fields: map[string]api.Field{
		"assetDate": {Value: []byte(`1709632800000`)},
		"name":      {Value: []byte(`"x"`)},
		"masterRef": {Value: []byte(`{"recordName":"m-1"}`)},
	}}
	if n, ok := r.Int("assetDate"); !ok || n != 1709632800000 {
		t.Fatalf("unexpected assetDate: %d, %v", n, ok)
	}
	if s, ok := r.String("name"); !ok || s != "x" {
		t.Fatalf("unexpected name: %q, %v", s, ok)
	}
	if ref, ok := r.Reference("masterRef"); !ok || ref.RecordName != "m-1" {
		t.Fatalf("unexpected masterRef: %+v, %v", ref, ok)
	}
	if _, ok := r.String("missing"); ok {
		t.Fatal("expected a missing field to be reported")
	}
	if _, ok := r.String("assetDate"); ok {
		t.Fatal("expected a type mismatch to be reported")
	}
}
