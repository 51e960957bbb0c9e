package icloud

import (
	"context"
	"encoding/base64"
	"io"
	"iter"
	"log/slog"
	"time"

	"icloud-photo-downloader/internal/downloader"
	"icloud-photo-downloader/internal/icloud/api"
)

// Photo is one item of the iCloud photo library.
type Photo struct {
	ID       string
	name     string
	created  time.Time
	original api.Resource
	remote   *api.Client
}

// Photo implements downloader.Item.
var _ downloader.Item = Photo{}

func (p Photo) Filename() string   { return p.name }
func (p Photo) Created() time.Time { return p.created }

// Size is the size in bytes of the original, as reported by iCloud.
func (p Photo) Size() int64 { return p.original.Size }

// Download opens the original resource. A photo without an original
// download URL returns a nil reader and a nil error.
func (p Photo) Download(ctx context.Context) (io.ReadCloser, error) {
	if p.original.DownloadURL == "" || p.remote == nil {
		return nil, nil
	}
	return p.remote.Download(ctx, p.original.DownloadURL)
}

// newPhoto builds a Photo from a master record and its asset record. asset
// may be nil.
func newPhoto(remote *api.Client, master api.Record, asset *api.Record) Photo {
	p := Photo{ID: master.RecordName, remote: remote}
	p.name = master.RecordName
	if enc, ok := master.String("filenameEnc"); ok {
		if name, err := base64.StdEncoding.DecodeString(enc); err == nil && len(name) > 0 {
			p.name = string(name)
		}
	}
	p.original, _ = master.Resource("resOriginalRes")

	var ms int64
	if asset != nil {
		ms, _ = asset.Int("assetDate")
	}
	if ms == 0 {
		ms = master.Created.Timestamp
	}
	if ms != 0 {
		p.created = time.UnixMilli(ms).UTC()
	}
	return p
}

// pairRecords matches each master record of a page with the asset record
// that references it, in master order.
func pairRecords(remote *api.Client, records []api.Record) []Photo {
	assets := make(map[string]*api.Record)
	var masters []api.Record
	for i, r := range records {
		switch r.RecordType {
		case api.RecordTypeAsset:
			if ref, ok := r.Reference("masterRef"); ok {
				assets[ref.RecordName] = &records[i]
			}
		case api.RecordTypeMaster:
			masters = append(masters, r)
		}
	}
	photos := make([]Photo, 0, len(masters))
	for _, m := range masters {
		asset := assets[m.RecordName]
		if asset == nil {
			slog.Debug("master record without asset", "id", m.RecordName)
		}
		photos = append(photos, newPhoto(remote, m, asset))
	}
	return photos
}

// photoPager walks the library one page at a time.
type photoPager struct {
	remote   *api.Client
	endpoint string
	pageSize int
	offset   int
	page     []Photo
	index    int
	done     bool
}

// next returns the next photo, requesting a new page when the current one
// is used up. It returns false once a page comes back empty.
func (p *photoPager) next(ctx context.Context) (Photo, bool, error) {
	if p.index >= len(p.page) {
		if p.done {
			return Photo{}, false, nil
		}
		records, err := p.remote.ListPhotoRecords(ctx, p.endpoint, p.offset, p.pageSize)
		if err != nil {
			return Photo{}, false, err
		}
		p.page = pairRecords(p.remote, records)
		p.index = 0
		p.offset += len(p.page)
		slog.Debug("fetched photo page", "offset", p.offset, "count", len(p.page))
		if len(p.page) == 0 {
			p.done = true
			return Photo{}, false, nil
		}
	}
	photo := p.page[p.index]
	p.index++
	return photo, true, nil
}

// Photos iterates over the whole library in asset date order. Pages are
// requested as the iteration proceeds. An error ends the iteration.
func (s *Session) Photos(ctx context.Context) iter.Seq2[Photo, error] {
	return func(yield func(Photo, error) bool) {
		endpoint := s.endpoint()
		if endpoint == "" {
			yield(Photo{}, ErrNoPhotoService)
			return
		}
		p := &photoPager{remote: s.api, endpoint: endpoint, pageSize: s.pageSize}
		for {
			photo, ok, err := p.next(ctx)
			if err != nil {
				yield(Photo{}, err)
				return
			}
			if !ok || !yield(photo, nil) {
				return
			}
		}
	}
}
