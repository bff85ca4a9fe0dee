package protocol

// AudioCache remembers the last known enableAudio and audioUrl. The
// firmware rejects an ATTR_SET_SERVICE that carries only one of the two.
type AudioCache struct {
	Enabled *bool
	URL     *string
}

// Refresh records whichever audio fields attrs carries.
func (c *AudioCache) Refresh(attrs AttributeSet) {
	if attrs.EnableAudio != nil {
		v := *attrs.EnableAudio
		c.Enabled = &v
	}
	if attrs.AudioURL != nil {
		v := *attrs.AudioURL
		c.URL = &v
	}
}

// NewAttrSetServiceOut builds an ATTR_SET_SERVICE request for changes.
// When changes carries one audio field the other is filled in from cache,
// and cache is updated with what will be sent. A nil cache disables pairing.
func NewAttrSetServiceOut(changes AttributeSet, cache *AudioCache) *AttrSetServiceOut {
	attrs := changes.Clone()
	if cache != nil && (attrs.EnableAudio != nil || attrs.AudioURL != nil) {
		if attrs.EnableAudio == nil && cache.Enabled != nil {
			v := *cache.Enabled
			attrs.EnableAudio = &v
		}
		if attrs.AudioURL == nil && cache.URL != nil {
			v := *cache.URL
			attrs.AudioURL = &v
		}
		cache.Refresh(attrs)
	}
	return &AttrSetServiceOut{Attributes: attrs}
}
