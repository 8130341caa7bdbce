package kvstore

import "time"

// Recorder receives one call per storage operation.
type Recorder interface {
	RecordStorageOp(op string, duration time.Duration, err error)
}

// Instrumented reports every operation of the wrapped store to a Recorder.
type Instrumented struct {
	inner    Store
	recorder Recorder
}

// Instrument wraps s. A nil recorder returns s unchanged.
func Instrument(s Store, recorder Recorder) Store {
	if recorder == nil {
		return s
	}
	return &Instrumented{inner: s, recorder: recorder}
}

func (i *Instrumented) Unwrap() Store { return i.inner }

func (i *Instrumented) Get(key string) ([]byte, bool, error) {
	start := time.Now()
	v, ok, err := i.inner.Get(key)
	i.recorder.RecordStorageOp("get", time.Since(start), err)
	return v, ok, err
}

func (i *Instrumented) Set(key string, value []byte) error {
	start := time.Now()
	err := i.inner.Set(key, value)
	i.recorder.RecordStorageOp("set", time.Since(start), err)
	return err
}

func (i *Instrumented) Delete(key string) error {
	start := time.Now()
	err := i.inner.Delete(key)
	i.recorder.RecordStorageOp("delete", time.Since(start), err)
	return err
}

func (i *Instrumented) Close() error { return i.inner.Close() }
