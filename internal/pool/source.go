package pool

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/prepforge/mocktest-engine/internal/db"
)

// Option is one answer choice of a resolved record.
type Option struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// Content is the projection of one question record through its pool's
// descriptor. Fields the pool does not expose stay at their zero value, so
// every pool marshals into the same shape.
type Content struct {
	Found         bool     `json:"found"`
	Pool          string   `json:"pool,omitempty"`
	ID            int64    `json:"id,omitempty"`
	ExternalKey   string   `json:"external_key,omitempty"`
	Question      string   `json:"question,omitempty"`
	QuestionPart  string   `json:"question_part,omitempty"`
	Options       []Option `json:"options,omitempty"`
	Answer        string   `json:"answer,omitempty"`
	Solution      string   `json:"solution,omitempty"`
	SolutionImage string   `json:"solution_image,omitempty"`
	Shortcut      string   `json:"shortcut,omitempty"`
	ShortcutImage string   `json:"shortcut_image,omitempty"`
	Subject       string   `json:"subject,omitempty"`
	Chapter       string   `json:"chapter,omitempty"`
	SubChapter    string   `json:"sub_chapter,omitempty"`
	Section       string   `json:"section,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
	QuestionType  string   `json:"question_type,omitempty"`
	TimeSeconds   int      `json:"time_seconds,omitempty"`
}

// NotFound is the placeholder emitted for a reference that resolved to
// nothing. Callers check Found instead of receiving an error.
func NotFound(poolName string, id int64) Content {
	return Content{Found: false, Pool: poolName, ID: id}
}

var scalarFields = []Field{
	FieldQuestion, FieldQuestionPart, FieldAnswer,
	FieldSolution, FieldSolutionImage, FieldShortcut, FieldShortcutImage,
	FieldSubject, FieldChapter, FieldSubChapter, FieldSection,
	FieldDifficulty, FieldQuestionType, FieldExternalKey,
}

// filterFields are the scope dimensions a distribution rule may constrain.
var filterFields = []Field{
	FieldSubject, FieldChapter, FieldSubChapter, FieldSection,
	FieldQuestionType, FieldDifficulty,
}

// Sample returns up to limit distinct record ids matching the filters,
// excluding the given ids, drawn in random order without replacement.
// Filters on fields the pool does not expose are silently ignored. Getting
// fewer ids than limit is not an error; the caller decides whether a
// shortfall matters.
func Sample(ctx context.Context, q db.DBTX, d *Descriptor, filters map[Field]string, limit int, exclude []int64) ([]int64, error) {
	if limit <= 0 {
		return nil, nil
	}
	var sb strings.Builder
	var args []any
	sb.WriteString("SELECT id FROM " + d.Table + " WHERE 1=1")
	for _, f := range filterFields {
		v := filters[f]
		if v == "" {
			continue
		}
		col, ok := d.Column(f)
		if !ok {
			continue
		}
		args = append(args, v)
		fmt.Fprintf(&sb, " AND %s=$%d", col, len(args))
	}
	if len(exclude) > 0 {
		sb.WriteString(" AND id NOT IN (")
		for i, id := range exclude {
			args = append(args, id)
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString("$" + strconv.Itoa(len(args)))
		}
		sb.WriteByte(')')
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY RANDOM() LIMIT $%d", len(args))

	rows, err := q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FetchByIDs resolves a batch of records in one query, keyed by id.
func FetchByIDs(ctx context.Context, q db.DBTX, d *Descriptor, ids []int64) (map[int64]Content, error) {
	out := make(map[int64]Content, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cols, fields := selectList(d)
	var args []any
	var ph []string
	for _, id := range ids {
		args = append(args, id)
		ph = append(ph, "$"+strconv.Itoa(len(args)))
	}
	query := "SELECT " + strings.Join(cols, ",") + " FROM " + d.Table +
		" WHERE id IN (" + strings.Join(ph, ",") + ")"
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanRecord(d, rows, fields)
		if err != nil {
			return nil, err
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// FetchByIDsOrKeys resolves records matching either an id or an external key
// in a single query. Keys are ignored for pools without an external key.
func FetchByIDsOrKeys(ctx context.Context, q db.DBTX, d *Descriptor, ids []int64, keys []string) ([]Content, error) {
	keyCol, hasKey := d.Column(FieldExternalKey)
	if !hasKey {
		keys = nil
	}
	if len(ids) == 0 && len(keys) == 0 {
		return nil, nil
	}
	cols, fields := selectList(d)
	var args []any
	var clauses []string
	if len(ids) > 0 {
		var ph []string
		for _, id := range ids {
			args = append(args, id)
			ph = append(ph, "$"+strconv.Itoa(len(args)))
		}
		clauses = append(clauses, "id IN ("+strings.Join(ph, ",")+")")
	}
	if len(keys) > 0 {
		var ph []string
		for _, k := range keys {
			args = append(args, k)
			ph = append(ph, "$"+strconv.Itoa(len(args)))
		}
		clauses = append(clauses, keyCol+" IN ("+strings.Join(ph, ",")+")")
	}
	query := "SELECT " + strings.Join(cols, ",") + " FROM " + d.Table +
		" WHERE " + strings.Join(clauses, " OR ")
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Content
	for rows.Next() {
		c, err := scanRecord(d, rows, fields)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ProbeIDs reports which of the given ids exist in the pool. Used to
// disambiguate legacy links that never recorded their pool.
func ProbeIDs(ctx context.Context, q db.DBTX, d *Descriptor, ids []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var args []any
	var ph []string
	for _, id := range ids {
		args = append(args, id)
		ph = append(ph, "$"+strconv.Itoa(len(args)))
	}
	rows, err := q.QueryContext(ctx,
		"SELECT id FROM "+d.Table+" WHERE id IN ("+strings.Join(ph, ",")+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// selectList builds the projection for a pool: the id column plus every
// logical field the pool exposes, in a fixed order.
func selectList(d *Descriptor) ([]string, []Field) {
	cols := []string{"id"}
	fields := []Field{"id"}
	add := func(f Field) {
		if c, ok := d.Column(f); ok {
			cols = append(cols, c)
			fields = append(fields, f)
		}
	}
	for _, f := range scalarFields {
		add(f)
	}
	for i := 1; i <= MaxOptionSlots; i++ {
		add(OptionField(i))
		add(OptionImageField(i))
	}
	add(FieldTime)
	return cols, fields
}

func scanRecord(d *Descriptor, rows *sql.Rows, fields []Field) (Content, error) {
	var id int64
	var timeVal sql.NullInt64
	strs := make([]sql.NullString, len(fields))
	dest := make([]any, len(fields))
	dest[0] = &id
	for i := 1; i < len(fields); i++ {
		if fields[i] == FieldTime {
			dest[i] = &timeVal
		} else {
			dest[i] = &strs[i]
		}
	}
	if err := rows.Scan(dest...); err != nil {
		return Content{}, err
	}

	c := Content{Found: true, Pool: d.Name, ID: id}
	if n := maxOptionSlot(d); n > 0 {
		c.Options = make([]Option, n)
	}
	for i := 1; i < len(fields); i++ {
		f := fields[i]
		s := strs[i].String
		switch f {
		case FieldTime:
			c.TimeSeconds = int(timeVal.Int64)
		case FieldQuestion:
			c.Question = s
		case FieldQuestionPart:
			c.QuestionPart = s
		case FieldAnswer:
			c.Answer = s
		case FieldSolution:
			c.Solution = s
		case FieldSolutionImage:
			c.SolutionImage = s
		case FieldShortcut:
			c.Shortcut = s
		case FieldShortcutImage:
			c.ShortcutImage = s
		case FieldSubject:
			c.Subject = s
		case FieldChapter:
			c.Chapter = s
		case FieldSubChapter:
			c.SubChapter = s
		case FieldSection:
			c.Section = s
		case FieldDifficulty:
			c.Difficulty = s
		case FieldQuestionType:
			c.QuestionType = s
		case FieldExternalKey:
			c.ExternalKey = s
		default:
			if slot, image, ok := optionSlot(f); ok {
				if image {
					c.Options[slot-1].Image = s
				} else {
					c.Options[slot-1].Text = s
				}
			}
		}
	}
	return c, nil
}

func optionSlot(f Field) (slot int, image bool, ok bool) {
	s, found := strings.CutPrefix(string(f), "option_")
	if !found {
		return 0, false, false
	}
	if rest, cut := strings.CutSuffix(s, "_image"); cut {
		image = true
		s = rest
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > MaxOptionSlots {
		return 0, false, false
	}
	return n, image, true
}

func maxOptionSlot(d *Descriptor) int {
	n := 0
	for i := 1; i <= MaxOptionSlots; i++ {
		if d.Has(OptionField(i)) || d.Has(OptionImageField(i)) {
			n = i
		}
	}
	return n
}
