package sqlite3

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/JB-SelfCompany/mailvault/internal/storage/types"
)

type TableMessages struct {
	db                  *sql.DB
	writer              *Writer
	createMessage       *sql.Stmt
	selectMessages      *sql.Stmt
	countMessages       *sql.Stmt
	countMessagesByHash *sql.Stmt
}

// content_hash is deliberately not UNIQUE: the same content archived by two
// users is two records pointing at one blob.
const messagesSchema = `
	CREATE TABLE IF NOT EXISTS messages (
		id				INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id			INTEGER NOT NULL,
		content_hash	TEXT NOT NULL,
		created_at		INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at		INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE INDEX IF NOT EXISTS messages_content_hash ON messages (content_hash);
`

const insertMessageStmt = `
	INSERT INTO messages (user_id, content_hash) VALUES ($1, $2)
	RETURNING id, created_at, updated_at
`

const selectMessagesStmt = `
	SELECT id, user_id, content_hash, created_at, updated_at FROM messages
	ORDER BY id
`

const countMessagesStmt = `
	SELECT COUNT(*) FROM messages
`

const countMessagesByHashStmt = `
	SELECT COUNT(*) FROM messages WHERE content_hash = $1
`

func NewTableMessages(db *sql.DB, writer *Writer) (*TableMessages, error) {
	t := &TableMessages{
		db:     db,
		writer: writer,
	}
	_, err := db.Exec(messagesSchema)
	if err != nil {
		return nil, fmt.Errorf("db.Exec: %w", err)
	}
	t.createMessage, err = db.Prepare(insertMessageStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(insertMessageStmt): %w", err)
	}
	t.selectMessages, err = db.Prepare(selectMessagesStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(selectMessagesStmt): %w", err)
	}
	t.countMessages, err = db.Prepare(countMessagesStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(countMessagesStmt): %w", err)
	}
	t.countMessagesByHash, err = db.Prepare(countMessagesByHashStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(countMessagesByHashStmt): %w", err)
	}
	return t, nil
}

// MessageCreate records that user userID holds the content identified by
// contentHash.
func (t *TableMessages) MessageCreate(userID int64, contentHash string) (*types.MetadataRecord, error) {
	record := &types.MetadataRecord{
		UserID:      userID,
		ContentHash: contentHash,
	}
	var created, updated int64
	err := t.writer.Do(func() error {
		return t.createMessage.QueryRow(userID, contentHash).Scan(&record.ID, &created, &updated)
	})
	if err != nil {
		return nil, fmt.Errorf("createMessage.QueryRow: %w", err)
	}
	record.CreatedAt = time.Unix(created, 0)
	record.UpdatedAt = time.Unix(updated, 0)
	return record, nil
}

// MessageList returns every metadata record ordered by id. The repair
// actions iterate this to re-derive the search index.
func (t *TableMessages) MessageList() ([]*types.MetadataRecord, error) {
	rows, err := t.selectMessages.Query()
	if err != nil {
		return nil, fmt.Errorf("selectMessages.Query: %w", err)
	}
	defer rows.Close()

	var records []*types.MetadataRecord
	for rows.Next() {
		var record types.MetadataRecord
		var created, updated int64
		if err := rows.Scan(&record.ID, &record.UserID, &record.ContentHash, &created, &updated); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		record.CreatedAt = time.Unix(created, 0)
		record.UpdatedAt = time.Unix(updated, 0)
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return records, nil
}

func (t *TableMessages) MessageCount() (int64, error) {
	var count int64
	if err := t.countMessages.QueryRow().Scan(&count); err != nil {
		return 0, fmt.Errorf("countMessages.QueryRow: %w", err)
	}
	return count, nil
}

// MessageCountByHash returns how many records reference contentHash.
func (t *TableMessages) MessageCountByHash(contentHash string) (int64, error) {
	var count int64
	if err := t.countMessagesByHash.QueryRow(contentHash).Scan(&count); err != nil {
		return 0, fmt.Errorf("countMessagesByHash.QueryRow: %w", err)
	}
	return count, nil
}
