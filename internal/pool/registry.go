package pool

import "fmt"

// Field is a logical field a pool may or may not expose. Pools are
// structurally different tables; the engine discovers presence through the
// registry instead of assuming a shared schema.
type Field string

const (
	FieldQuestion      Field = "question"
	FieldQuestionPart  Field = "question_part"
	FieldAnswer        Field = "answer"
	FieldSolution      Field = "solution"
	FieldSolutionImage Field = "solution_image"
	FieldShortcut      Field = "shortcut"
	FieldShortcutImage Field = "shortcut_image"
	FieldSubject       Field = "subject"
	FieldChapter       Field = "chapter"
	FieldSubChapter    Field = "sub_chapter"
	FieldSection       Field = "section"
	FieldDifficulty    Field = "difficulty"
	FieldQuestionType  Field = "question_type"
	FieldExternalKey   Field = "external_key"
	FieldTime          Field = "time_seconds"
)

// MaxOptionSlots is the widest option layout any pool uses.
const MaxOptionSlots = 10

// OptionField returns the logical field for option slot n (1-based).
func OptionField(n int) Field { return Field(fmt.Sprintf("option_%d", n)) }

// OptionImageField returns the logical field for option slot n's image.
func OptionImageField(n int) Field { return Field(fmt.Sprintf("option_%d_image", n)) }

// Descriptor maps one pool's logical fields onto its physical columns.
// Every pool table has an integer primary key column named "id".
type Descriptor struct {
	Name    string
	Table   string
	Columns map[Field]string
}

// Has reports whether the pool exposes the logical field.
func (d *Descriptor) Has(f Field) bool {
	_, ok := d.Columns[f]
	return ok
}

// Column returns the physical column backing a logical field.
func (d *Descriptor) Column(f Field) (string, bool) {
	c, ok := d.Columns[f]
	return c, ok
}

// Fields returns the set of logical fields the pool exposes.
func (d *Descriptor) Fields() map[Field]bool {
	out := make(map[Field]bool, len(d.Columns))
	for f := range d.Columns {
		out[f] = true
	}
	return out
}

// Registry resolves pool names to descriptors. It is built once at startup;
// lookups are read-only afterwards.
type Registry struct {
	byName map[string]*Descriptor
	names  []string
}

func NewRegistry(descs ...*Descriptor) *Registry {
	r := &Registry{byName: make(map[string]*Descriptor, len(descs))}
	for _, d := range descs {
		if _, dup := r.byName[d.Name]; dup {
			continue
		}
		r.byName[d.Name] = d
		r.names = append(r.names, d.Name)
	}
	return r
}

// Resolve returns the descriptor for a pool name. An unknown name is not an
// error: callers treat it as "rule ineffective" and move on.
func (r *Registry) Resolve(name string) (*Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Names returns pool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

func sameNamed(cols map[Field]string, fields ...Field) map[Field]string {
	if cols == nil {
		cols = map[Field]string{}
	}
	for _, f := range fields {
		cols[f] = string(f)
	}
	return cols
}

func withOptions(cols map[Field]string, slots int, images bool) map[Field]string {
	for i := 1; i <= slots; i++ {
		cols[OptionField(i)] = string(OptionField(i))
		if images {
			cols[OptionImageField(i)] = string(OptionImageField(i))
		}
	}
	return cols
}

// Default returns the registry for the stock question banks. The tables are
// deliberately uneven: current_affairs has an external key but no taxonomy,
// quantitative_aptitude has the full taxonomy plus images and shortcuts,
// static_gk is the bare minimum.
func Default() *Registry {
	return NewRegistry(
		&Descriptor{
			Name:  "polity",
			Table: "polity",
			Columns: withOptions(sameNamed(nil,
				FieldQuestion, FieldAnswer, FieldSolution,
				FieldChapter, FieldSubChapter, FieldDifficulty, FieldExternalKey,
			), 4, false),
		},
		&Descriptor{
			Name:  "current_affairs",
			Table: "current_affairs",
			Columns: withOptions(sameNamed(nil,
				FieldQuestion, FieldAnswer, FieldSolution,
				FieldQuestionType, FieldExternalKey,
			), 4, false),
		},
		&Descriptor{
			Name:  "quantitative_aptitude",
			Table: "quantitative_aptitude",
			Columns: withOptions(sameNamed(nil,
				FieldQuestion, FieldQuestionPart, FieldAnswer,
				FieldSolution, FieldSolutionImage, FieldShortcut, FieldShortcutImage,
				FieldSubject, FieldChapter, FieldSubChapter, FieldSection,
				FieldDifficulty, FieldQuestionType, FieldTime,
			), 5, true),
		},
		&Descriptor{
			Name:  "static_gk",
			Table: "static_gk",
			Columns: withOptions(sameNamed(nil,
				FieldQuestion, FieldAnswer, FieldSubject, FieldChapter,
			), 4, false),
		},
	)
}
