package bcmedia

// inferVideoType guesses H264 vs H265 by walking Annex-B start codes and
// inspecting the first NAL unit's type field, since the BCMedia iframe
// chunk header carries no explicit codec tag (spec.md §4.3).
func inferVideoType(data []byte) VideoType {
	off := firstNALOffset(data)
	if off < 0 || off >= len(data) {
		return VideoTypeUnknown
	}
	b := data[off]

	// H264: forbidden_zero_bit(1) nal_ref_idc(2) nal_unit_type(5).
	h264Type := b & 0x1f
	switch h264Type {
	case 7, 8, 5, 1: // SPS, PPS, IDR, non-IDR slice
		return VideoTypeH264
	}

	// H265 needs a second header byte: nal_unit_type is bits 1-6 of byte 0.
	if off+1 < len(data) {
		h265Type := (b >> 1) & 0x3f
		switch h265Type {
		case 32, 33, 34, // VPS, SPS, PPS
			19, 20, 21: // IDR_W_RADL, IDR_N_LP, CRA_NUT
			return VideoTypeH265
		}
	}

	return VideoTypeUnknown
}

// firstNALOffset returns the index just past the first Annex-B start code
// (00 00 01 or 00 00 00 01), 0 if non-empty data doesn't begin with one
// (already a bare NAL unit), or -1 if data is empty.
func firstNALOffset(data []byte) int {
	if len(data) >= 4 && data[0] == 0 && data[1] == 0 && data[2] == 0 && data[3] == 1 {
		return 4
	}
	if len(data) >= 3 && data[0] == 0 && data[1] == 0 && data[2] == 1 {
		return 3
	}
	if len(data) > 0 {
		return 0
	}
	return -1
}
