package objdisk

//Option is an object store device option
type Option interface {
	apply(*Device)
}

//OptConcurFlushCount instructs an object store device to upload this many
// dirty segments at once during Flush; this has memory usage implications
// for compressed uploads (workers * segment size)
type OptConcurFlushCount uint

func (count OptConcurFlushCount) apply(dev *Device) {
	dev.concurFlush = uint(count)
}

//OptCompressRemoteObjects instructs an object store device to store remote
// objects using the provided compression mode
type OptCompressRemoteObjects Mode

func (compressMode OptCompressRemoteObjects) apply(dev *Device) {
	dev.compressMode = Mode(compressMode)
}
