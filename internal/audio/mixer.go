package audio

// Mixer decodes per-speaker opus packets and mixes whatever is queued into
// a single native-format frame.
type Mixer interface {
	WriteOpusPacket(speakerID string, opus []byte)
	ReadMixedFrame() (RawFrame, bool)
	Close()
}

type MixerFactory func() Mixer
