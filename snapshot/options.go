package snapshot

// Encoding selects how bytes read from the engine are handed back.
type Encoding uint8

const (
	// EncodingDefault defers to the snapshot's configured encoding.
	EncodingDefault Encoding = iota
	EncodingRaw
	EncodingText
)

func (e Encoding) String() string {
	switch e {
	case EncodingRaw:
		return "raw"
	case EncodingText:
		return "text"
	default:
		return "default"
	}
}

// EncodingFor maps an "as buffer" flag onto an Encoding.
func EncodingFor(asBuffer bool) Encoding {
	if asBuffer {
		return EncodingRaw
	}
	return EncodingText
}

func (e Encoding) or(def Encoding) Encoding {
	if e == EncodingDefault {
		return def
	}
	return e
}

// Options is fixed when a snapshot is created.
type Options struct {
	// FillCache lets reads through the snapshot populate the engine's
	// block cache.
	FillCache bool
	// KeyAsBuffer returns keys as []byte rather than string.
	KeyAsBuffer bool
	// ValueAsBuffer returns values as []byte rather than string.
	ValueAsBuffer bool
}

func DefaultOptions() Options {
	return Options{
		FillCache:     false,
		KeyAsBuffer:   true,
		ValueAsBuffer: true,
	}
}

func (o Options) KeyEncoding() Encoding   { return EncodingFor(o.KeyAsBuffer) }
func (o Options) ValueEncoding() Encoding { return EncodingFor(o.ValueAsBuffer) }

// GetOptions are per-read settings.
type GetOptions struct {
	ValueEncoding Encoding
	// DontFillCache applies to live reads only. A snapshot's fill policy is
	// bound into its engine handle at creation and cannot be overridden.
	DontFillCache bool
}

// Value is a read result packaged per its encoding.
type Value struct {
	data []byte
	enc  Encoding
}

func NewValue(data []byte, enc Encoding) Value {
	return Value{data: data, enc: enc.or(EncodingRaw)}
}

func (v Value) Bytes() []byte      { return v.data }
func (v Value) String() string     { return string(v.data) }
func (v Value) Encoding() Encoding { return v.enc }

// Interface returns []byte for raw values and string for text values.
func (v Value) Interface() interface{} {
	if v.enc == EncodingText {
		return string(v.data)
	}
	return v.data
}

// Result is delivered to asynchronous read callbacks.
type Result struct {
	Key   Value
	Value Value
	Err   error
}

// Callback receives the outcome of an asynchronous read exactly once.
type Callback func(Result)
