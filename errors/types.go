/*
 * Copyright (C) 2024, Xiongfa Li.
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

package errors

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

type Code string

const (
	CodeResourceResolution    Code = "RESOURCE_RESOLUTION"
	CodeDefinitionParse       Code = "DEFINITION_PARSE"
	CodeDuplicateDefinition   Code = "DUPLICATE_DEFINITION"
	CodeUnresolvableReference Code = "UNRESOLVABLE_REFERENCE"
	CodeLifecycle             Code = "LIFECYCLE"
	CodeNoSuchDefinition      Code = "NO_SUCH_DEFINITION"
	CodeBeanCreation          Code = "BEAN_CREATION"
)

// Error 容器错误，Location/BeanName/Generation用于定位问题来源
type Error struct {
	Code       Code
	Message    string
	Location   string
	BeanName   string
	Generation uint64
	Cause      error
}

func (e *Error) Error() string {
	buf := strings.Builder{}
	buf.WriteString("[")
	buf.WriteString(string(e.Code))
	buf.WriteString("] ")
	buf.WriteString(e.Message)
	if e.BeanName != "" {
		buf.WriteString(fmt.Sprintf(" (bean '%s')", e.BeanName))
	}
	if e.Location != "" {
		buf.WriteString(fmt.Sprintf(" in [%s]", e.Location))
	}
	if e.Generation > 0 {
		buf.WriteString(fmt.Sprintf(" generation %d", e.Generation))
	}
	if e.Cause != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Cause.Error())
	}
	return buf.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithGeneration 返回带有context代数的副本
func (e *Error) WithGeneration(gen uint64) *Error {
	ret := *e
	ret.Generation = gen
	return &ret
}

// WithLocation 未记录资源位置时返回带有location的副本
func (e *Error) WithLocation(location string) *Error {
	if e.Location != "" || location == "" {
		return e
	}
	ret := *e
	ret.Location = location
	return &ret
}

// IsCode 判断err链中是否存在指定Code的容器错误
func IsCode(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !pkgerrors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

func ResourceResolution(location string, cause error) *Error {
	return &Error{
		Code:     CodeResourceResolution,
		Message:  "cannot resolve or open resource",
		Location: location,
		Cause:    cause,
	}
}

func DefinitionParse(location string, cause error) *Error {
	return &Error{
		Code:     CodeDefinitionParse,
		Message:  "malformed bean definition input",
		Location: location,
		Cause:    cause,
	}
}

func DuplicateDefinition(name, existing, location string) *Error {
	return &Error{
		Code:     CodeDuplicateDefinition,
		Message:  fmt.Sprintf("cannot register bean definition, already bound from [%s]", existing),
		BeanName: name,
		Location: location,
	}
}

func UnresolvableReference(what, location string, cause error) *Error {
	return &Error{
		Code:     CodeUnresolvableReference,
		Message:  fmt.Sprintf("cannot resolve %s", what),
		Location: location,
		Cause:    cause,
	}
}

func Lifecycle(format string, args ...interface{}) *Error {
	return &Error{
		Code:    CodeLifecycle,
		Message: fmt.Sprintf(format, args...),
	}
}

func NoSuchDefinition(name string) *Error {
	return &Error{
		Code:     CodeNoSuchDefinition,
		Message:  "no bean definition found",
		BeanName: name,
	}
}

func BeanCreation(name, location string, cause error) *Error {
	return &Error{
		Code:     CodeBeanCreation,
		Message:  "error creating bean",
		BeanName: name,
		Location: location,
		Cause:    cause,
	}
}
