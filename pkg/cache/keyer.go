package cache

// Keyer generates cache keys for the different entry kinds.
type Keyer interface {
	// HTTPKey returns the key for a fetched response body.
	HTTPKey(namespace, key string) string

	// ResultKey returns the key for a pipeline result of an image whose
	// encoded bytes hash to imageHash.
	ResultKey(imageHash string, opts ResultKeyOpts) string
}

// ResultKeyOpts lists every option that changes a pipeline result.
type ResultKeyOpts struct {
	Width      int    `json:"w"`
	Height     int    `json:"h"`
	Channel    string `json:"ch"`
	AutoOrient bool   `json:"ao,omitempty"`
	Threshold  int    `json:"t"`
	P          int    `json:"p"`
	Q          int    `json:"q"`
	Iterations int    `json:"k"`
	BlockSize  int    `json:"b"`
	ChunkSize  int    `json:"c"`
	Edge       string `json:"e"`
	Tail       string `json:"tail"`
	Bitmap     bool   `json:"bm,omitempty"`
}

// DefaultKeyer is the standard Keyer.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// HTTPKey returns "http:<namespace>:<key>".
func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}

// ResultKey returns "result:<hash(imageHash, opts)>".
func (DefaultKeyer) ResultKey(imageHash string, opts ResultKeyOpts) string {
	return hashKey("result", imageHash, opts)
}

// ScopedKeyer wraps a Keyer with a prefix, isolating for example results
// of one server instance from another sharing the same redis.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// If inner is nil, a DefaultKeyer is used.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// HTTPKey generates a prefixed key for HTTP response caching.
func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}

// ResultKey generates a prefixed key for result caching.
func (k *ScopedKeyer) ResultKey(imageHash string, opts ResultKeyOpts) string {
	return k.prefix + k.inner.ResultKey(imageHash, opts)
}
