package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// CardRecord is one row of the card database's cards table.
type CardRecord struct {
	ID        string
	Metadata  Metadata
	ImagePath string
}

const cardsQuery = `SELECT id, name, collector_number, public_code, set_id, set_name,
	domains, rarity, card_type, energy, might, tags, illustrator, text,
	orientation, image_url, image_path
	FROM cards`

// ReadCardRecords opens the sqlite card database at path and reads every
// card row.
func ReadCardRecords(ctx context.Context, path string) ([]CardRecord, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open card database: %w", err)
	}
	defer db.Close()

	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;")
	return ReadCardRecordsDB(ctx, db)
}

// ReadCardRecordsDB reads every card row from an open database.
func ReadCardRecordsDB(ctx context.Context, db *sql.DB) ([]CardRecord, error) {
	rows, err := db.QueryContext(ctx, cardsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var records []CardRecord
	for rows.Next() {
		var (
			id, name                                     string
			number, energy, might                        sql.NullInt64
			code, setID, setName, domains, rarity, kind  sql.NullString
			tags, illustrator, text, orientation, imgURL sql.NullString
			imagePath                                    sql.NullString
		)
		if err := rows.Scan(&id, &name, &number, &code, &setID, &setName,
			&domains, &rarity, &kind, &energy, &might, &tags, &illustrator, &text,
			&orientation, &imgURL, &imagePath); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}

		md := Metadata{
			Name:        name,
			Number:      int(number.Int64),
			Code:        code.String,
			Set:         setID.String,
			SetName:     setName.String,
			Domains:     parseList(domains.String),
			Rarity:      rarity.String,
			Type:        kind.String,
			Energy:      nullInt(energy),
			Might:       nullInt(might),
			Tags:        parseList(tags.String),
			Illustrator: illustrator.String,
			Text:        text.String,
			Orientation: orientation.String,
			ImageURL:    imgURL.String,
		}
		if len(md.Domains) > 0 {
			md.Domain = md.Domains[0]
		}
		records = append(records, CardRecord{ID: id, Metadata: md, ImagePath: imagePath.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cards: %w", err)
	}
	return records, nil
}

// parseList reads a list column stored either as a JSON array or as
// comma-separated text.
func parseList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var list []string
	if strings.HasPrefix(s, "[") && json.Unmarshal([]byte(s), &list) == nil {
		return list
	}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			list = append(list, part)
		}
	}
	return list
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
