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
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalWaiter(t *testing.T) {
	t.Run("stop", func(t *testing.T) {
		waiter := NewSignalWaiter(OptWithoutSystemSignals())
		go func() {
			time.Sleep(10 * time.Millisecond)
			waiter.Stop()
		}()
		assert.NoError(t, waiter.Wait(context.Background()))
		waiter.Stop()
	})

	t.Run("notify SIGQUIT", func(t *testing.T) {
		waiter := NewSignalWaiter(OptWithoutSystemSignals())
		waiter.Notify(syscall.SIGQUIT)
		assert.NoError(t, waiter.Wait(context.Background()))
	})

	t.Run("notify SIGHUP and SIGTERM", func(t *testing.T) {
		waiter := NewSignalWaiter(OptWithoutSystemSignals())
		done := make(chan error, 1)
		go func() {
			done <- waiter.Wait(context.Background())
		}()
		waiter.Notify(syscall.SIGHUP)
		select {
		case <-done:
			t.Fatal("SIGHUP must be ignored")
		case <-time.After(20 * time.Millisecond):
		}
		waiter.Notify(syscall.SIGTERM)
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("SIGTERM not handled")
		}
	})

	t.Run("context done", func(t *testing.T) {
		waiter := NewSignalWaiter(OptWithoutSystemSignals())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, waiter.Wait(ctx), context.DeadlineExceeded)
	})
}

func TestWaitAndClose(t *testing.T) {
	waiter := NewSignalWaiter(OptWithoutSystemSignals())
	waiter.Stop()

	var order []int
	err := WaitAndClose(context.Background(), waiter,
		func() error {
			order = append(order, 1)
			return nil
		},
		func() error {
			order = append(order, 2)
			return fmt.Errorf("close failed")
		})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close failed")
	assert.Equal(t, []int{2, 1}, order)
}
