/*
 * Copyright 2024 Xiongfa Li.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package application

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/xfali/neve-context/errors"
	"github.com/xfali/xlog"
)

type SignalWaiter interface {
	// Wait 等待信号，直到获得退出信号、ctx结束或者Stop被调用后返回
	// 参数 ctx: 监听ctx，如果ctx Done则同样退出
	// 返回 err: ctx结束时返回ctx的错误，其他情况返回nil
	Wait(ctx context.Context) (err error)

	// Notify 主动发送信号，不会阻塞
	Notify(signal os.Signal)

	// Stop 强制结束等待
	Stop()
}

type Closer func() error

type SignalWaiterOpt func(*defaultWaiter)

type defaultWaiter struct {
	logger        xlog.Logger
	signals       []os.Signal
	exitSignals   []os.Signal
	ignoreSignals []os.Signal
	ch            chan os.Signal
	stopCh        chan struct{}
	stopOnce      sync.Once
	notify        bool
}

func NewSignalWaiter(opts ...SignalWaiterOpt) *defaultWaiter {
	ret := &defaultWaiter{
		logger:        xlog.GetLogger(),
		ch:            make(chan os.Signal, 1),
		stopCh:        make(chan struct{}),
		signals:       []os.Signal{syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT},
		exitSignals:   []os.Signal{syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT},
		ignoreSignals: []os.Signal{syscall.SIGHUP},
		notify:        true,
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.notify {
		signal.Notify(ret.ch, ret.signals...)
	}
	return ret
}

func OptSetWaiterLogger(logger xlog.Logger) SignalWaiterOpt {
	return func(w *defaultWaiter) {
		w.logger = logger
	}
}

func OptAddNotifySignals(signals ...os.Signal) SignalWaiterOpt {
	return func(w *defaultWaiter) {
		w.signals = append(w.signals, signals...)
	}
}

func OptAddExitSignals(signals ...os.Signal) SignalWaiterOpt {
	return func(w *defaultWaiter) {
		w.exitSignals = append(w.exitSignals, signals...)
	}
}

func OptAddIgnoreSignals(signals ...os.Signal) SignalWaiterOpt {
	return func(w *defaultWaiter) {
		w.ignoreSignals = append(w.ignoreSignals, signals...)
	}
}

// OptWithoutSystemSignals 不监听进程信号，只响应Notify和Stop
func OptWithoutSystemSignals() SignalWaiterOpt {
	return func(w *defaultWaiter) {
		w.notify = false
	}
}

func contains(signals []os.Signal, si os.Signal) bool {
	for _, v := range signals {
		if v == si {
			return true
		}
	}
	return false
}

func (h *defaultWaiter) Wait(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logger.Infof("Context done, error: %v, closing...\n", ctx.Err())
			return ctx.Err()
		case <-h.stopCh:
			return nil
		case si := <-h.ch:
			if contains(h.exitSignals, si) {
				h.logger.Infof("Got a signal %s, closing...\n", si.String())
				return nil
			}
			if contains(h.ignoreSignals, si) {
				h.logger.Infof("Ignore signal %s\n", si.String())
				continue
			}
			return nil
		}
	}
}

func (h *defaultWaiter) Notify(signal os.Signal) {
	select {
	case h.ch <- signal:
	default:
	}
}

func (h *defaultWaiter) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		signal.Stop(h.ch)
	})
}

// WaitAndClose 等待退出后按逆序调用closers，单个closer失败不影响其他closer
func WaitAndClose(ctx context.Context, waiter SignalWaiter, closers ...Closer) error {
	waitErr := waiter.Wait(ctx)
	var errs errors.Errors
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs.AddError(err)
		}
	}
	if errs.Empty() {
		return waitErr
	}
	return errs.Err()
}
