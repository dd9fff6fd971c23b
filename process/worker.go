package process

import (
	"sync"

	"github.com/pkg/errors"
)

type anyResp struct {
	v   any
	err error
}

type anyReq struct {
	run  func() (any, error)
	resp chan anyResp
}

// workerPool runs submitted functions on a fixed set of goroutines.
// A panic in a function is returned to its submitter as an error.
type workerPool struct {
	req chan anyReq
	wg  sync.WaitGroup
}

func startWorkers(n int) *workerPool {
	if n <= 0 {
		n = 1
	}

	r := &workerPool{
		req: make(chan anyReq),
	}

	r.wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer r.wg.Done()

			for q := range r.req {
				var out any
				var err error
				func() {
					defer func() {
						if x := recover(); x != nil {
							err = errors.Errorf("worker panic: %v", x)
						}
					}()
					out, err = q.run()
				}()
				q.resp <- anyResp{out, err}
				close(q.resp)
			}
		}()
	}

	return r
}

func (r *workerPool) stop() {
	close(r.req)
	r.wg.Wait()
}

// submit blocks until a worker accepts fn and returns a function that
// waits for its result.
func submit[T any](r *workerPool, fn func() (T, error)) func() (T, error) {
	resp := make(chan anyResp, 1)
	r.req <- anyReq{
		run:  func() (any, error) { v, err := fn(); return v, err },
		resp: resp,
	}

	return func() (T, error) {
		r0 := <-resp
		if r0.err != nil {
			var zero T
			return zero, r0.err
		}
		return r0.v.(T), nil
	}
}
