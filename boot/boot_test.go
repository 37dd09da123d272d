/*
 * Copyright (C) 2022, Xiongfa Li.
 * All rights reserved.
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

package boot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xfali/neve-context"
	"github.com/xfali/neve-context/appcontext"
	"github.com/xfali/neve-context/application"
)

type clock struct{}

func TestCustomize(t *testing.T) {
	app, err := neve.NewFileConfigApplication("testdata/application.yaml",
		neve.OptSetSignalWaiter(application.NewSignalWaiter(application.OptWithoutSystemSignals())))
	require.NoError(t, err)
	Customize(app)
	require.NoError(t, RegisterBean(&clock{}))

	done := make(chan error, 1)
	go func() {
		done <- Run()
	}()
	require.Eventually(t, func() bool {
		return Context().State() == appcontext.StateActive
	}, 5*time.Second, 10*time.Millisecond)
	assert.True(t, Context().ContainsBean("clock"))

	require.NoError(t, Close())
	require.NoError(t, <-done)
}
