package bcmedia

// Demuxer buffers incoming bytes and lazily yields chunks as enough data
// accumulates, matching the "lazy chunk stream over an incoming byte
// buffer" framing in spec.md §4.3. It holds no protocol state beyond the
// byte buffer itself — BCMedia framing doesn't depend on anything
// negotiated during login.
type Demuxer struct {
	buf []byte
}

// NewDemuxer returns an empty Demuxer.
func NewDemuxer() *Demuxer {
	return &Demuxer{}
}

// Feed appends newly received bytes to the internal buffer.
func (d *Demuxer) Feed(data []byte) {
	d.buf = append(d.buf, data...)
}

// Next attempts to decode one chunk from the buffered bytes. It returns
// (nil, false, nil) when more data is needed (ErrShortBuffer was
// swallowed), and a non-nil error for anything else in the taxonomy, which
// the caller should treat as fatal to the stream.
func (d *Demuxer) Next() (Chunk, bool, error) {
	chunk, n, err := Decode(d.buf)
	if err == ErrShortBuffer {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	d.buf = d.buf[n:]
	return chunk, true, nil
}

// Buffered reports how many bytes are waiting to be decoded.
func (d *Demuxer) Buffered() int {
	return len(d.buf)
}
