package bcmedia

import "encoding/binary"

const infoChunkSize = 32

// Decode parses one chunk from the front of buf. It returns the chunk, the
// number of bytes consumed, and an error if the magic is unrecognized or
// buf is shorter than the chunk requires. Callers that get ErrShortBuffer
// should wait for more data rather than treating it as a protocol error;
// every other error is fatal to the stream per spec.md §4.3.
func Decode(buf []byte) (Chunk, int, error) {
	if len(buf) < 4 {
		return nil, 0, ErrShortBuffer
	}
	magic := binary.LittleEndian.Uint32(buf[0:4])

	switch {
	case magic == magicInfoV1:
		return decodeInfo(buf, 1)
	case magic == magicInfoV2:
		return decodeInfo(buf, 2)
	case magic >= magicIframeBase && magic <= magicIframeMax:
		return decodeIframe(buf, channelFromMagic(magic, magicIframeBase))
	case magic >= magicPframeBase && magic <= magicPframeMax:
		return decodePframe(buf, channelFromMagic(magic, magicPframeBase))
	case magic == magicAac:
		return decodeAac(buf)
	case magic == magicAdpcm:
		return decodeAdpcm(buf)
	default:
		return nil, 0, ErrUnknownMagic
	}
}

func decodeInfo(buf []byte, version int) (Chunk, int, error) {
	if len(buf) < infoChunkSize {
		return nil, 0, ErrShortBuffer
	}
	width := binary.LittleEndian.Uint32(buf[4:8])
	height := binary.LittleEndian.Uint32(buf[8:12])
	fps := binary.LittleEndian.Uint32(buf[12:16])
	start := decodeWallClock(buf[16:24])
	end := decodeWallClock(buf[24:32])
	return Info{Version: version, Width: width, Height: height, FPS: fps, Start: start, End: end}, infoChunkSize, nil
}

func decodeWallClock(b []byte) WallClock {
	return WallClock{
		Year:   binary.LittleEndian.Uint16(b[0:2]),
		Month:  b[2],
		Day:    b[3],
		Hour:   b[4],
		Minute: b[5],
		Second: b[6],
	}
}

const iframeHeaderSize = 16

func decodeIframe(buf []byte, channel int) (Chunk, int, error) {
	if len(buf) < iframeHeaderSize {
		return nil, 0, ErrShortBuffer
	}
	payloadSize := binary.LittleEndian.Uint32(buf[4:8])
	timestampUs := binary.LittleEndian.Uint32(buf[8:12])
	posixTime := binary.LittleEndian.Uint32(buf[12:16])
	total := iframeHeaderSize + int(payloadSize)
	if len(buf) < total {
		return nil, 0, ErrShortBuffer
	}
	data := append([]byte(nil), buf[iframeHeaderSize:total]...)
	return Iframe{
		Channel:     channel,
		VideoType:   inferVideoType(data),
		TimestampUs: timestampUs,
		PosixTime:   posixTime,
		Data:        data,
	}, total, nil
}

const pframeHeaderSize = 12

func decodePframe(buf []byte, channel int) (Chunk, int, error) {
	if len(buf) < pframeHeaderSize {
		return nil, 0, ErrShortBuffer
	}
	payloadSize := binary.LittleEndian.Uint32(buf[4:8])
	timestampUs := binary.LittleEndian.Uint32(buf[8:12])
	total := pframeHeaderSize + int(payloadSize)
	if len(buf) < total {
		return nil, 0, ErrShortBuffer
	}
	data := append([]byte(nil), buf[pframeHeaderSize:total]...)
	return Pframe{
		Channel:     channel,
		VideoType:   inferVideoType(data),
		TimestampUs: timestampUs,
		Data:        data,
	}, total, nil
}

const audioHeaderSize = 8

func decodeAac(buf []byte) (Chunk, int, error) {
	if len(buf) < audioHeaderSize {
		return nil, 0, ErrShortBuffer
	}
	size1 := binary.LittleEndian.Uint16(buf[4:6])
	size2 := binary.LittleEndian.Uint16(buf[6:8])
	if size1 != size2 {
		return nil, 0, ErrShortBuffer
	}
	total := audioHeaderSize + int(size1)
	if len(buf) < total {
		return nil, 0, ErrShortBuffer
	}
	data := append([]byte(nil), buf[audioHeaderSize:total]...)
	return Aac{Data: data, DurationUs: aacDurationUs(data)}, total, nil
}

// adpcmSubHeaderSize is the submagic(2) + sample_block_size(1) + reserved(1)
// that sits inside the declared size per spec.md §4.3's "block_size = len-4".
const adpcmSubHeaderSize = 4
const adpcmSampleRateHz = 8000

func decodeAdpcm(buf []byte) (Chunk, int, error) {
	if len(buf) < audioHeaderSize+adpcmSubHeaderSize {
		return nil, 0, ErrShortBuffer
	}
	size1 := binary.LittleEndian.Uint16(buf[4:6])
	size2 := binary.LittleEndian.Uint16(buf[6:8])
	if size1 != size2 {
		return nil, 0, ErrShortBuffer
	}
	if int(size1) < adpcmSubHeaderSize {
		return nil, 0, ErrShortBuffer
	}
	total := audioHeaderSize + int(size1)
	if len(buf) < total {
		return nil, 0, ErrShortBuffer
	}
	blockSize := int(size1) - adpcmSubHeaderSize
	dataStart := audioHeaderSize + adpcmSubHeaderSize
	data := append([]byte(nil), buf[dataStart:total]...)
	durationUs := uint64(blockSize) * 2 * 1_000_000 / adpcmSampleRateHz
	return Adpcm{BlockSize: blockSize, Data: data, DurationUs: durationUs}, total, nil
}
