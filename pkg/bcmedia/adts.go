package bcmedia

// adtsHeaderSize is the fixed ADTS header length without the optional CRC.
const adtsHeaderSize = 7

// adtsSampleRates maps the 4-bit sampling_frequency_index to Hz, per the
// ADTS/MPEG-4 frequency table. Indexes 13-15 are reserved.
var adtsSampleRates = [16]int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 7350, 0, 0, 0,
}

// adtsFramesAndRate reads the sampling-frequency index and raw-data-block
// count out of an ADTS fixed header and returns (frames in packet, sample
// rate in Hz). It returns (0, 0) if buf is too short to contain a header.
func adtsFramesAndRate(buf []byte) (frames int, sampleRateHz int) {
	if len(buf) < adtsHeaderSize {
		return 0, 0
	}
	sfi := (buf[2] >> 2) & 0x0f
	rate := adtsSampleRates[sfi]
	rawBlocks := buf[6] & 0x03
	return int(rawBlocks) + 1, rate
}

// aacDurationUs computes spec.md §4.3's AAC duration formula:
// frames * 1024 * 1e6 / sample_rate.
func aacDurationUs(data []byte) uint64 {
	frames, rate := adtsFramesAndRate(data)
	if rate == 0 {
		return 0
	}
	return uint64(frames) * 1024 * 1_000_000 / uint64(rate)
}
