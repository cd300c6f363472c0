package neocam

import (
	"context"

	"github.com/nvr-core/bc/pkg/bc"
	"github.com/nvr-core/bc/pkg/bcerr"
	"github.com/nvr-core/bc/pkg/bcmedia"
	"github.com/nvr-core/bc/pkg/login"
	"github.com/nvr-core/bc/pkg/mux"
	"github.com/nvr-core/bc/pkg/xmlmodel"
)

// StreamKind selects which of a camera's encoded feeds video-start asks
// for, supplemented from original_source/src/common/instance.rs's
// StreamKind (Main/Sub/Extern).
type StreamKind string

const (
	StreamMain   StreamKind = "mainStream"
	StreamSub    StreamKind = "subStream"
	StreamExtern StreamKind = "externStream"
)

// streamChunkQueueDepth bounds the decoded-chunk channel Stream hands
// callers: the media-channel half of spec.md §9's "Backpressure on
// media", distinct from SubscriptionMux's own per-subscriber bound
// (pkg/mux's subscriberQueueDepth) that guards the raw binary payload
// feeding the demuxer underneath it.
const streamChunkQueueDepth = 100

// Stream issues video-start on channel, demuxes the camera's ongoing
// BCMedia payload into chunks, and delivers them on the returned channel
// until ctx is cancelled, at which point video-stop is sent and the
// channel is closed. Grounded on
// original_source/src/common/instance.rs's stream/stream_while_live,
// which wrap start_video in run_task and forward each decoded chunk into
// a bounded channel; RunTask here plays the same role, reissuing
// video-start on every reconnect for as long as ctx is live.
//
// Chunks are delivered with a non-blocking send: when the consumer falls
// behind and the channel is full, the chunk is dropped and a warning is
// logged. The consumer is not disconnected; the channel stays open until
// ctx is cancelled or the stream ends with an error.
func (n *NeoCam) Stream(ctx context.Context, channel int, kind StreamKind) (<-chan bcmedia.Chunk, error) {
	out := make(chan bcmedia.Chunk, streamChunkQueueDepth)

	go func() {
		defer close(out)
		err := n.RunTask(ctx, func(bctx *bc.Context, m *mux.Mux) error {
			return n.runStream(ctx, m, channel, kind, out)
		})
		if err != nil {
			n.log.Debugf("%s: stream on channel %d ended: %v", n.name, channel, err)
		}
	}()

	return out, nil
}

func (n *NeoCam) runStream(ctx context.Context, m *mux.Mux, channel int, kind StreamKind, out chan<- bcmedia.Chunk) error {
	msgNum := m.NextMsgNum()
	sub := m.Subscribe(mux.Key{MsgID: bc.MsgIDVideoStart, MsgNum: msgNum})
	defer sub.Close()
	defer n.stopVideo(channel, m)

	startXML := xmlmodel.NewBcXml()
	startXML.Preview = &xmlmodel.Preview{
		Version:    xmlmodel.DefaultVersion,
		Channel:    channel,
		Handle:     0,
		StreamType: string(kind),
	}
	req := &bc.Message{
		Meta: bc.Meta{MsgID: bc.MsgIDVideoStart, MsgNum: msgNum, Class: bc.ClassModernOffset, ChannelID: uint8(channel)},
		Body: bc.ModernBody{PayloadKind: bc.PayloadXML, XML: startXML},
	}
	if err := m.Send(ctx, req); err != nil {
		return err
	}

	ack, err := sub.Recv(ctx)
	if err != nil {
		return err
	}
	if ack == nil {
		return mux.ErrDroppedConnection
	}
	if ack.Meta.ResponseCode != bc.ResponseOK {
		return &bcerr.CameraServiceUnavailable{MsgID: bc.MsgIDVideoStart, Code: uint16(ack.Meta.ResponseCode)}
	}

	// Subsequent messages on this same (msg_id, msg_num) pair are the
	// camera's binary media payload: codec.go already promoted msg_num
	// into bctx's binary-mode set while parsing the ack's extension, so
	// they arrive here as ModernBody.Binary.
	demux := bcmedia.NewDemuxer()
	for {
		msg, err := sub.Recv(ctx)
		if err != nil {
			return err
		}
		if msg == nil {
			return mux.ErrDroppedConnection
		}
		modern, ok := msg.Body.(bc.ModernBody)
		if !ok || modern.PayloadKind != bc.PayloadBinary {
			continue
		}
		demux.Feed(modern.Binary)
		if err := drainChunks(demux, out, n, channel); err != nil {
			return err
		}
	}
}

func drainChunks(demux *bcmedia.Demuxer, out chan<- bcmedia.Chunk, n *NeoCam, channel int) error {
	for {
		chunk, ok, err := demux.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		select {
		case out <- chunk:
		default:
			// Backpressure on media (spec.md §9): the consumer isn't
			// draining fast enough. Drop the chunk instead of blocking
			// the stream's own reader loop.
			n.log.Warnf("%s: slow stream consumer on channel %d, dropping chunk", n.name, channel)
		}
	}
}

func (n *NeoCam) stopVideo(channel int, m *mux.Mux) {
	ctx, cancel := context.WithTimeout(context.Background(), login.SetterReplyPatience)
	defer cancel()
	x := xmlmodel.NewBcXml()
	x.Preview = &xmlmodel.Preview{Version: xmlmodel.DefaultVersion, Channel: channel}
	req := &bc.Message{
		Meta: bc.Meta{MsgID: bc.MsgIDVideoStop, MsgNum: m.NextMsgNum(), Class: bc.ClassModernOffset, ChannelID: uint8(channel)},
		Body: bc.ModernBody{PayloadKind: bc.PayloadXML, XML: x},
	}
	_ = m.Send(ctx, req)
}
