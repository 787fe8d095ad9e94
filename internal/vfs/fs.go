package vfs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/hedgey/internal/apperr"
	"github.com/starford/hedgey/internal/models"
	"github.com/starford/hedgey/internal/storage"
)

const (
	noteType    = "text/plain"
	defaultType = "application/octet-stream"
	untitled    = "Untitled"
)

// NoteInput is the payload of SaveNote. An empty ID creates a new note.
type NoteInput struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Upload is a file handed to SaveUpload.
type Upload struct {
	Name string
	Type string
	Data []byte
}

// Blob is a decrypted record body.
type Blob struct {
	Name string
	Type string
	Data []byte
}

// FileSystem stores notes and uploads as encrypted records.
type FileSystem struct {
	db     *DB
	keys   *Keyring
	notice func()
	now    func() time.Time

	mu sync.Mutex // serializes name resolution with the write that follows
}

// Option configures a FileSystem.
type Option func(*FileSystem)

// WithNotice sets the callback fired once per database after the first
// successful encrypted write.
func WithNotice(fn func()) Option {
	return func(fs *FileSystem) { fs.notice = fn }
}

// WithClock overrides the time source used for updated_at.
func WithClock(now func() time.Time) Option {
	return func(fs *FileSystem) { fs.now = now }
}

// New creates a filesystem over db whose records are sealed with keys.
func New(db *DB, keys *Keyring, opts ...Option) *FileSystem {
	fs := &FileSystem{db: db, keys: keys, now: time.Now}
	for _, o := range opts {
		o(fs)
	}
	return fs
}

// Keys returns the keyring guarding this filesystem.
func (fs *FileSystem) Keys() *Keyring { return fs.keys }

// Settings exposes the metadata store for small persisted values.
func (fs *FileSystem) Settings() Settings { return fs.db }

// ListFiles returns metadata of every record, newest first. Blobs stay sealed.
func (fs *FileSystem) ListFiles(ctx context.Context) ([]models.Record, error) {
	rows, err := fs.db.allFiles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Record, len(rows))
	for i := range rows {
		out[i] = toRecord(&rows[i])
	}
	return out, nil
}

// ListNotes returns only note records.
func (fs *FileSystem) ListNotes(ctx context.Context) ([]models.Record, error) {
	return fs.listKind(ctx, models.KindNote)
}

// ListUploads returns only uploaded file records.
func (fs *FileSystem) ListUploads(ctx context.Context) ([]models.Record, error) {
	return fs.listKind(ctx, models.KindFile)
}

func (fs *FileSystem) listKind(ctx context.Context, kind string) ([]models.Record, error) {
	all, err := fs.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Record, 0, len(all))
	for _, r := range all {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out, nil
}

// GetFileByID returns the record with id, or nil when it does not exist.
func (fs *FileSystem) GetFileByID(ctx context.Context, id string) (*models.Record, error) {
	if id == "" {
		return nil, nil
	}
	row, err := fs.db.fileByID(ctx, id)
	if err != nil || row == nil {
		return nil, err
	}
	rec := toRecord(row)
	return &rec, nil
}

// SaveNote encrypts and stores a note. Saving under an existing ID keeps the
// id and re-resolves the name against every other record.
func (fs *FileSystem) SaveNote(ctx context.Context, in NoteInput) (*models.Record, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.ErrEmptyName
	}
	key, err := fs.keys.Key(ctx)
	if err != nil {
		return nil, err
	}
	defer wipe(key)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	rows, err := fs.db.allFiles(ctx)
	if err != nil {
		return nil, err
	}
	id := in.ID
	if id == "" {
		id = newID("n")
	}
	row := &FileModel{
		ID:   id,
		Name: uniqueName(in.Name, rows, in.ID),
		Kind: models.KindNote,
		Type: noteType,
		Size: int64(len(in.Content)),
	}
	if err := fs.sealInto(row, key, []byte(in.Content)); err != nil {
		return nil, err
	}
	return fs.persist(ctx, row)
}

// SaveUpload encrypts and stores an uploaded file as a new record.
func (fs *FileSystem) SaveUpload(ctx context.Context, up Upload) (*models.Record, error) {
	name := up.Name
	if strings.TrimSpace(name) == "" {
		name = untitled
	}
	typ := up.Type
	if typ == "" {
		typ = defaultType
	}
	key, err := fs.keys.Key(ctx)
	if err != nil {
		return nil, err
	}
	defer wipe(key)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	rows, err := fs.db.allFiles(ctx)
	if err != nil {
		return nil, err
	}
	row := &FileModel{
		ID:   newID("f"),
		Name: uniqueName(name, rows, ""),
		Kind: models.KindFile,
		Type: typ,
		Size: int64(len(up.Data)),
	}
	if err := fs.sealInto(row, key, up.Data); err != nil {
		return nil, err
	}
	return fs.persist(ctx, row)
}

// ReadFileBlob decrypts the body of record id. It returns nil when the record
// or its body is missing.
func (fs *FileSystem) ReadFileBlob(ctx context.Context, id string) (*Blob, error) {
	row, err := fs.db.fileByID(ctx, id)
	if err != nil || row == nil {
		return nil, err
	}
	if row.Blob == nil {
		return nil, nil
	}
	data := row.Blob
	if row.Enc {
		key, err := fs.keys.Key(ctx)
		if err != nil {
			return nil, err
		}
		defer wipe(key)
		iv, err := base64.StdEncoding.DecodeString(row.IV)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: bad iv", apperr.ErrDecrypt, id)
		}
		if data, err = open(key, iv, row.Blob); err != nil {
			return nil, fmt.Errorf("%w: %s", apperr.ErrDecrypt, id)
		}
	}
	typ := row.Type
	if typ == "" {
		typ = defaultType
	}
	return &Blob{Name: row.Name, Type: typ, Data: data}, nil
}

// ReadNoteText returns the plaintext of a note. ok is false when id does not
// name a note.
func (fs *FileSystem) ReadNoteText(ctx context.Context, id string) (string, bool, error) {
	rec, err := fs.GetFileByID(ctx, id)
	if err != nil || rec == nil || rec.Kind != models.KindNote {
		return "", false, err
	}
	blob, err := fs.ReadFileBlob(ctx, id)
	if err != nil {
		return "", false, err
	}
	if blob == nil {
		return "", true, nil
	}
	return string(blob.Data), true, nil
}

// Download decrypts record id and writes it into dst under the record name.
// It returns the written path, or ok=false when the record or body is missing.
func (fs *FileSystem) Download(ctx context.Context, id string, dst storage.Provider) (string, bool, error) {
	blob, err := fs.ReadFileBlob(ctx, id)
	if err != nil || blob == nil {
		return "", false, err
	}
	name, err := dst.WriteNew(DownloadName(blob.Name), blob.Data)
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

// DownloadName turns a record name into a safe single path element.
func DownloadName(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" || base == ".." || base == "" {
		return "download"
	}
	return base
}

// Delete removes record id. Unknown ids return apperr.ErrNotFound.
func (fs *FileSystem) Delete(ctx context.Context, id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	ok, err := fs.db.deleteFile(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrNotFound
	}
	return nil
}

// DesktopTags returns the persisted tag index (tag name to record ids).
func (fs *FileSystem) DesktopTags(ctx context.Context) (map[string][]string, error) {
	raw, ok, err := fs.db.GetSetting(ctx, metaDesktopTags)
	if err != nil {
		return nil, err
	}
	tags := make(map[string][]string)
	if !ok {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("vfs: decode desktop tags: %w", err)
	}
	return tags, nil
}

// SetDesktopTags replaces the tag index. Tags with no ids are dropped.
func (fs *FileSystem) SetDesktopTags(ctx context.Context, tags map[string][]string) error {
	clean := make(map[string][]string, len(tags))
	for tag, ids := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || len(ids) == 0 {
			continue
		}
		clean[tag] = ids
	}
	data, err := json.Marshal(clean)
	if err != nil {
		return fmt.Errorf("vfs: encode desktop tags: %w", err)
	}
	return fs.db.SetSetting(ctx, metaDesktopTags, string(data))
}

func (fs *FileSystem) sealInto(row *FileModel, key, plaintext []byte) error {
	iv, ct, err := seal(key, plaintext)
	if err != nil {
		return err
	}
	row.NameKey = strings.ToLower(row.Name)
	row.UpdatedAt = fs.now().UnixMilli()
	row.Enc = true
	row.IV = base64.StdEncoding.EncodeToString(iv)
	row.Blob = ct
	return nil
}

func (fs *FileSystem) persist(ctx context.Context, row *FileModel) (*models.Record, error) {
	if err := fs.db.putFile(ctx, row); err != nil {
		return nil, err
	}
	fs.latchNotice(ctx)
	rec := toRecord(row)
	return &rec, nil
}

// latchNotice fires the notice callback the first time any write lands in
// this database. A failure to record the flag only means the notice may show
// again next session.
func (fs *FileSystem) latchNotice(ctx context.Context) {
	if fs.notice == nil {
		return
	}
	if _, shown, err := fs.db.GetSetting(ctx, metaNoticeShown); err != nil || shown {
		return
	}
	if err := fs.db.SetSetting(ctx, metaNoticeShown, "1"); err != nil {
		return
	}
	fs.notice()
}

func toRecord(row *FileModel) models.Record {
	return models.Record{
		ID:        row.ID,
		Name:      row.Name,
		Kind:      row.Kind,
		Type:      row.Type,
		Size:      row.Size,
		UpdatedAt: time.UnixMilli(row.UpdatedAt).UTC(),
		Enc:       row.Enc,
		IV:        row.IV,
		Blob:      row.Blob,
	}
}

func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
