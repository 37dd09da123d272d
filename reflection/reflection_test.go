/*
 * Copyright 2022 Xiongfa Li.
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

package reflection

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct{}

type named int

func TestClassName(t *testing.T) {
	assert.Equal(t, "github.com.xfali.neve-context.reflection.sample", GetClassName(reflect.TypeOf(&sample{})))
	assert.Equal(t, "UserService", SimpleName("github.com.acme.UserService"))
	assert.Equal(t, "a.b.C", QualifiedName("a/b", "C", "x"))
	assert.Equal(t, "x", QualifiedName("a/b", "", "x"))
}

func TestDecapitalize(t *testing.T) {
	assert.Equal(t, "userService", Decapitalize("UserService"))
	assert.Equal(t, "URL", Decapitalize("URL"))
	assert.Equal(t, "a", Decapitalize("A"))
	assert.Equal(t, "", Decapitalize(""))
	assert.Equal(t, "Name", Capitalize("name"))
}

func TestConvertString(t *testing.T) {
	t.Run("basic", func(t *testing.T) {
		v, err := ConvertString("10", reflect.TypeOf(0))
		require.NoError(t, err)
		assert.Equal(t, 10, v.Interface())

		v, err = ConvertString("true", reflect.TypeOf(false))
		require.NoError(t, err)
		assert.Equal(t, true, v.Interface())

		v, err = ConvertString("1.5", reflect.TypeOf(float32(0)))
		require.NoError(t, err)
		assert.Equal(t, float32(1.5), v.Interface())

		v, err = ConvertString("5s", reflect.TypeOf(time.Duration(0)))
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, v.Interface())

		v, err = ConvertString("7", reflect.TypeOf(named(0)))
		require.NoError(t, err)
		assert.Equal(t, named(7), v.Interface())
	})

	t.Run("error", func(t *testing.T) {
		_, err := ConvertString("x", reflect.TypeOf(0))
		assert.Error(t, err)
		_, err = ConvertString("x", reflect.TypeOf(sample{}))
		assert.Error(t, err)
	})
}

func TestAssignableValue(t *testing.T) {
	c := 10
	v, err := AssignableValue(&c, reflect.TypeOf(&c))
	require.NoError(t, err)
	assert.Equal(t, 10, *v.Interface().(*int))

	v, err = AssignableValue(nil, reflect.TypeOf(&c))
	require.NoError(t, err)
	assert.True(t, v.IsNil())

	v, err = AssignableValue(int32(3), reflect.TypeOf(int64(0)))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.Interface())

	_, err = AssignableValue(sample{}, reflect.TypeOf(0))
	assert.Error(t, err)
}
