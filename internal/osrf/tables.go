package osrf

// FieldTable maps logical field names to slot positions for one class
// of the tagged positional encoding.
//
// Tables are versioned by class tag: when the backend revs a class it
// publishes the new order under a new tag (e.g. "acp" vs "acp.v2"), so
// the table is always selected by the tag declared on the wire and
// never inferred from payload shape.
type FieldTable struct {
	Class string
	index map[string]int
}

// NewFieldTable builds a table from the class's ordered field names.
func NewFieldTable(class string, names ...string) FieldTable {
	idx := make(map[string]int, len(names))
	for i, n := range names {
		idx[n] = i
	}
	return FieldTable{Class: class, index: idx}
}

// Index returns the slot position of a logical field.
func (t FieldTable) Index(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Registry resolves class tags to field tables.
type Registry struct {
	tables map[string]FieldTable
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]FieldTable)}
}

// Register adds or replaces the table for its class tag.
func (r *Registry) Register(t FieldTable) {
	r.tables[t.Class] = t
}

// Lookup returns the table registered for a class tag.
func (r *Registry) Lookup(class string) (FieldTable, bool) {
	t, ok := r.tables[class]
	return t, ok
}

// DefaultRegistry returns a registry preloaded with the field orders of
// the backend classes this service consumes.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewFieldTable("acp",
		"id", "barcode", "call_number", "circ_lib", "copy_number",
		"deposit", "deposit_amount", "dummy_isbn", "status", "location",
		"loan_duration", "circulate", "deleted", "holdable",
		"opac_visible", "price", "ref", "owning_lib"))
	r.Register(NewFieldTable("acn",
		"id", "creator", "editor", "record", "label", "owning_lib",
		"prefix", "suffix", "deleted", "copies"))
	r.Register(NewFieldTable("circ",
		"id", "usr", "target_copy", "xact_start", "due_date",
		"checkin_time", "xact_finish", "renewal_remaining",
		"desk_renewal", "opac_renewal", "phone_renewal", "stop_fines"))
	r.Register(NewFieldTable("ahr",
		"id", "hold_type", "target", "usr", "pickup_lib", "frozen",
		"thaw_date", "request_time", "capture_time",
		"shelf_expire_time", "fulfillment_time", "cancel_time",
		"cancel_cause", "current_copy"))
	r.Register(NewFieldTable("aou",
		"id", "name", "shortname", "parent_ou", "ou_type",
		"opac_visible", "children"))
	r.Register(NewFieldTable("ccs",
		"id", "name", "holdable", "opac_visible"))
	r.Register(NewFieldTable("acpl",
		"id", "name", "owning_lib", "holdable", "opac_visible",
		"circulate"))
	r.Register(NewFieldTable("au",
		"id", "usrname", "family_name", "first_given_name", "card",
		"home_ou", "barred"))
	r.Register(NewFieldTable("atc",
		"id", "source", "dest", "target_copy", "source_send_time",
		"dest_recv_time", "copy_status"))
	r.Register(NewFieldTable("bre",
		"id", "tcn_value", "creator", "editor", "deleted"))
	return r
}
