package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// PhotosService is the web service name of the CloudKit database that
// holds the photo library.
const PhotosService = "ckdatabasews"

// Record is a CloudKit record.
type Record struct {
	RecordName string           `json:"recordName"`
	RecordType string           `json:"recordType"`
	Fields     map[string]Field `json:"fields"`
	Created    struct {
		Timestamp int64 `json:"timestamp"`
	} `json:"created"`
}

// Field is a CloudKit record field. Value is decoded on demand since its
// shape depends on Type.
type Field struct {
	Value json.RawMessage `json:"value"`
	Type  string          `json:"type,omitempty"`
}

// Resource is the value of an asset resource field, e.g. resOriginalRes.
type Resource struct {
	DownloadURL string `json:"downloadURL"`
	Size        int64  `json:"size"`
}

// Reference is the value of a reference field, e.g. masterRef.
type Reference struct {
	RecordName string `json:"recordName"`
}

// String decodes a string field. ok is false if the field is missing or
// not a string.
func (r Record) String(name string) (s string, ok bool) {
	ok = r.decodeField(name, &s)
	return s, ok
}

// Int decodes an integer field.
func (r Record) Int(name string) (n int64, ok bool) {
	ok = r.decodeField(name, &n)
	return n, ok
}

// Resource decodes a resource field.
func (r Record) Resource(name string) (res Resource, ok bool) {
	ok = r.decodeField(name, &res)
	return res, ok
}

// Reference decodes a reference field.
func (r Record) Reference(name string) (ref Reference, ok bool) {
	ok = r.decodeField(name, &ref)
	return ref, ok
}

func (r Record) decodeField(name string, v any) bool {
	f, ok := r.Fields[name]
	if !ok || len(f.Value) == 0 {
		return false
	}
	return json.Unmarshal(f.Value, v) == nil
}

// Query is a CloudKit records query.
type Query struct {
	Query        QueryBody `json:"query"`
	ResultsLimit int       `json:"resultsLimit,omitempty"`
	DesiredKeys  []string  `json:"desiredKeys,omitempty"`
	ZoneID       ZoneID    `json:"zoneID"`
}

// QueryBody selects the records of a query.
type QueryBody struct {
	RecordType string   `json:"recordType"`
	FilterBy   []Filter `json:"filterBy,omitempty"`
}

// Filter is a single query filter.
type Filter struct {
	FieldName  string `json:"fieldName"`
	Comparator string `json:"comparator"`
	FieldValue Field  `json:"fieldValue"`
}

// ZoneID names a CloudKit zone.
type ZoneID struct {
	ZoneName string `json:"zoneName"`
}

// QueryResponse is the result of a records query.
type QueryResponse struct {
	Records []Record `json:"records"`
}

const (
	primaryZone = "PrimarySync"

	// RecordTypeMaster holds the original resource of a photo.
	RecordTypeMaster = "CPLMaster"
	// RecordTypeAsset holds the library entry of a photo.
	RecordTypeAsset = "CPLAsset"

	// assetListing is the library listing of everything that is neither
	// hidden nor deleted, ordered by asset date.
	assetListing = "CPLAssetAndMasterByAssetDateWithoutHiddenOrDeleted"
)

// photoKeys are the fields requested for listing pages.
var photoKeys = []string{
	"resOriginalRes", "resOriginalFileType", "filenameEnc", "originalOrientation",
	"assetDate", "addedDate", "masterRef", "isHidden", "isDeleted", "recordName",
	"recordType", "itemType",
}

// ErrIndexing is returned when the photo library is still being indexed
// and cannot be listed yet.
var ErrIndexing = errors.New("iCloud Photo Library not finished indexing")

// PhotosEndpoint returns the private photo database endpoint for the
// account, or "" if the account has no photo service.
func PhotosEndpoint(info *AccountInfo) string {
	base := info.ServiceURL(PhotosService)
	if base == "" {
		return ""
	}
	return base + "/database/1/com.apple.photos.cloud/production/private"
}

// QueryRecords runs q against the photo database at endpoint.
func (c *Client) QueryRecords(ctx context.Context, endpoint string, q Query) (*QueryResponse, error) {
	params := url.Values{}
	params.Set("remapEnums", "true")
	params.Set("getCurrentSyncToken", "true")
	if c.sess.dsid != "" {
		params.Set("dsid", c.sess.dsid)
	}
	resp, err := c.post(ctx, endpoint+"/records/query?"+params.Encode(), q)
	if err != nil {
		return nil, err
	}
	if err := checkStatusCode(resp); err != nil {
		return nil, err
	}
	var qr QueryResponse
	if err := decode(resp, &qr); err != nil {
		return nil, fmt.Errorf("decoding query response: %w", err)
	}
	return &qr, nil
}

// CheckIndexingState returns [ErrIndexing] unless the library is ready to
// be listed.
func (c *Client) CheckIndexingState(ctx context.Context, endpoint string) error {
	resp, err := c.QueryRecords(ctx, endpoint, Query{
		Query:  QueryBody{RecordType: "CheckIndexingState"},
		ZoneID: ZoneID{ZoneName: primaryZone},
	})
	if err != nil {
		return err
	}
	if len(resp.Records) == 0 {
		return ErrIndexing
	}
	if state, _ := resp.Records[0].String("state"); state != "FINISHED" {
		return ErrIndexing
	}
	return nil
}

// ListPhotoRecords requests one page of the library starting at rank
// offset. The page holds up to limit master records and their asset
// records.
func (c *Client) ListPhotoRecords(ctx context.Context, endpoint string, offset, limit int) ([]Record, error) {
	startRank, _ := json.Marshal(offset)
	resp, err := c.QueryRecords(ctx, endpoint, Query{
		Query: QueryBody{
			RecordType: assetListing,
			FilterBy: []Filter{
				{
					FieldName:  "startRank",
					Comparator: "EQUALS",
					FieldValue: Field{Type: "INT64", Value: startRank},
				},
				{
					FieldName:  "direction",
					Comparator: "EQUALS",
					FieldValue: Field{Type: "STRING", Value: json.RawMessage(`"ASCENDING"`)},
				},
			},
		},
		// Each photo is a master and an asset record.
		ResultsLimit: limit * 2,
		DesiredKeys:  photoKeys,
		ZoneID:       ZoneID{ZoneName: primaryZone},
	})
	if err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// Download opens the resource at downloadURL. The caller must close the
// returned body.
func (c *Client) Download(ctx context.Context, downloadURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if err := checkStatusCode(resp); err != nil {
		return nil, err
	}
	return resp.Body, nil
}
