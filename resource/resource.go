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

// Package resource 提供基于fs.FS的资源定位以及Ant风格的路径匹配。
package resource

import (
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	ClasspathPrefix = "classpath:"
	FilePrefix      = "file:"
)

type Resource interface {
	// 资源描述，用于日志和错误信息，例如 classpath:config/app.xml
	Location() string

	// 资源在所属文件系统中的路径
	Path() string

	// 文件名
	Filename() string

	Exists() bool

	Open() (io.ReadCloser, error)

	// 相对当前资源所在目录创建资源，以/开头时相对文件系统根目录
	Relative(rel string) Resource
}

type fsResource struct {
	prefix string
	fsys   fs.FS
	path   string
}

func newResource(prefix string, fsys fs.FS, p string) *fsResource {
	return &fsResource{
		prefix: prefix,
		fsys:   fsys,
		path:   cleanPath(p),
	}
}

func cleanPath(p string) string {
	p = path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimPrefix(p, "/")
}

func (r *fsResource) Location() string {
	if r.prefix == "" {
		return "/" + r.path
	}
	return r.prefix + r.path
}

func (r *fsResource) Path() string {
	return r.path
}

func (r *fsResource) Filename() string {
	return path.Base(r.path)
}

func (r *fsResource) Exists() bool {
	if r.path == "." {
		return false
	}
	info, err := fs.Stat(r.fsys, r.path)
	return err == nil && !info.IsDir()
}

func (r *fsResource) Open() (io.ReadCloser, error) {
	return r.fsys.Open(r.path)
}

func (r *fsResource) Relative(rel string) Resource {
	if strings.HasPrefix(rel, "/") {
		return newResource(r.prefix, r.fsys, rel)
	}
	return newResource(r.prefix, r.fsys, path.Join(path.Dir(r.path), rel))
}

func (r *fsResource) String() string {
	return r.Location()
}

// fileFS 以操作系统根目录为起点的文件系统，用于file:前缀
func fileFS() fs.FS {
	return os.DirFS(string(filepath.Separator))
}

func absFilePath(p string) string {
	abs, err := filepath.Abs(filepath.FromSlash(p))
	if err != nil {
		return p
	}
	return filepath.ToSlash(abs)
}
