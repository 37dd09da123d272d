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

package errors

import (
	"strings"
)

type ErrList interface {
	Empty() bool

	AddError(e error) ErrList

	Error() string
}

// Errors 收集多个错误，用于销毁阶段等不能中断的处理
type Errors []error

func (es Errors) Empty() bool {
	return len(es) == 0
}

func (es *Errors) AddError(e error) ErrList {
	if e != nil {
		*es = append(*es, e)
	}
	return es
}

// Err 没有错误时返回nil，避免返回类型为Errors的非空interface
func (es Errors) Err() error {
	if es.Empty() {
		return nil
	}
	return es
}

func (es Errors) Error() string {
	buf := strings.Builder{}
	for i := range es {
		buf.WriteString(es[i].Error())
		if i < len(es)-1 {
			buf.WriteString(", ")
		}
	}
	return buf.String()
}

func (es Errors) Unwrap() []error {
	return es
}
