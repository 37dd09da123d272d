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

package metadata

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xfali/neve-context/reflection"
)

var majorVersion = regexp.MustCompile(`^v[0-9]+$`)

// SourceReader 解析go源码获取类型元数据。
// 不编译、不加载、不执行被读取的代码，父类型和接口所在的包也不需要存在。
type SourceReader struct {
	registry *AnnotationRegistry
}

func NewSourceReader(registry *AnnotationRegistry) *SourceReader {
	return &SourceReader{
		registry: registry,
	}
}

// SourceFile 待解析的源文件，Name用于错误信息和结果索引
type SourceFile struct {
	Name string
	Src  []byte
}

// ReadFile 读取单个文件中声明的全部具名struct类型，pkgPath为空时使用源码的包名。
// 方法和接口断言只在该文件范围内查找，需要包范围时使用ReadFiles
func (r *SourceReader) ReadFile(pkgPath, filename string) ([]*AnnotationMetadata, error) {
	return r.ReadFiles(pkgPath, filename)
}

// ReadFiles 将多个文件作为同一个包读取，按文件和声明顺序返回类型
func (r *SourceReader) ReadFiles(pkgPath string, filenames ...string) ([]*AnnotationMetadata, error) {
	files := make([]SourceFile, 0, len(filenames))
	for _, name := range filenames {
		src, err := os.ReadFile(name)
		if err != nil {
			return nil, err
		}
		files = append(files, SourceFile{Name: name, Src: src})
	}
	types, err := r.ReadPackage(pkgPath, files...)
	if err != nil {
		return nil, err
	}
	var ret []*AnnotationMetadata
	for _, f := range files {
		ret = append(ret, types[f.Name]...)
	}
	return ret, nil
}

// ReadSource 同ReadFile，内容由src给出，filename仅用于错误信息
func (r *SourceReader) ReadSource(pkgPath, filename string, src []byte) ([]*AnnotationMetadata, error) {
	types, err := r.ReadPackage(pkgPath, SourceFile{Name: filename, Src: src})
	if err != nil {
		return nil, err
	}
	return types[filename], nil
}

// ReadPackage 解析同一个包的多个源文件：方法和 var _ Iface = (*T)(nil) 断言可以位于包内任意文件。
// 第一个文件的包名决定所属的包，声明其他包名的文件被忽略。
// 返回文件名到该文件中声明的类型的映射
func (r *SourceReader) ReadPackage(pkgPath string, files ...SourceFile) (map[string][]*AnnotationMetadata, error) {
	fset := token.NewFileSet()
	pkg := &sourcePackage{
		pkgPath:    pkgPath,
		interfaces: map[string][]string{},
		methods:    map[string][]*ast.FuncDecl{},
	}
	pkgName := ""
	var parsed []*sourceFile
	for _, f := range files {
		file, err := parser.ParseFile(fset, f.Name, f.Src, parser.ParseComments|parser.SkipObjectResolution)
		if err != nil {
			return nil, err
		}
		if pkgName == "" {
			pkgName = file.Name.Name
			if pkg.pkgPath == "" {
				pkg.pkgPath = pkgName
			}
		} else if file.Name.Name != pkgName {
			continue
		}
		sf := &sourceFile{
			sourcePackage: pkg,
			name:          f.Name,
			imports:       importTable(file),
		}
		for _, decl := range file.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok {
				continue
			}
			for _, spec := range gen.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					if _, ok := s.Type.(*ast.StructType); ok {
						sf.types = append(sf.types, s)
					}
				case *ast.ValueSpec:
					sf.readAssertion(s)
				}
			}
		}
		sf.readMethods(file)
		parsed = append(parsed, sf)
	}

	ret := make(map[string][]*AnnotationMetadata, len(parsed))
	for _, sf := range parsed {
		ms := make([]*AnnotationMetadata, 0, len(sf.types))
		for _, spec := range sf.types {
			m, err := r.build(sf, spec)
			if err != nil {
				return nil, errors.WithMessagef(err, "%s", fset.Position(spec.Pos()))
			}
			ms = append(ms, m)
		}
		ret[sf.name] = ms
	}
	return ret, nil
}

func (r *SourceReader) build(sf *sourceFile, spec *ast.TypeSpec) (*AnnotationMetadata, error) {
	var (
		super       string
		annotations []Annotation
	)
	st := spec.Type.(*ast.StructType)
	for _, field := range st.Fields.List {
		if len(field.Names) == 0 {
			if super == "" {
				super = sf.typeName(field.Type)
			}
			continue
		}
		if field.Names[0].Name != "_" || field.Tag == nil {
			continue
		}
		tag, err := strconv.Unquote(field.Tag.Value)
		if err != nil {
			return nil, err
		}
		as, err := ParseAnnotations(reflect.StructTag(tag).Get(TagName))
		if err != nil {
			return nil, err
		}
		annotations = append(annotations, as...)
	}

	var methods []methodSpec
	for _, decl := range sf.methods[spec.Name.Name] {
		var exprs []string
		if decl.Doc != nil {
			for _, c := range decl.Doc.List {
				if strings.HasPrefix(c.Text, DirectivePrefix) {
					exprs = append(exprs, strings.TrimPrefix(c.Text, DirectivePrefix))
				}
			}
		}
		as, err := ParseAnnotations(strings.Join(exprs, " "))
		if err != nil {
			return nil, errors.WithMessagef(err, "method %s.%s", spec.Name.Name, decl.Name.Name)
		}
		methods = append(methods, methodSpec{name: decl.Name.Name, annotations: as})
	}

	return newAnnotationMetadata(r.registry,
		reflection.QualifiedName(sf.pkgPath, spec.Name.Name, spec.Name.Name),
		super,
		sf.interfaces[spec.Name.Name],
		annotations,
		methods), nil
}

// sourcePackage 包范围的方法和接口表
type sourcePackage struct {
	pkgPath    string
	interfaces map[string][]string
	methods    map[string][]*ast.FuncDecl
}

type sourceFile struct {
	*sourcePackage
	name    string
	imports map[string]string
	types   []*ast.TypeSpec
}

func importTable(file *ast.File) map[string]string {
	ret := map[string]string{}
	for _, imp := range file.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		name := ""
		if imp.Name != nil {
			name = imp.Name.Name
		} else {
			name = defaultPackageName(p)
		}
		if name == "_" || name == "." {
			continue
		}
		ret[name] = p
	}
	return ret
}

// defaultPackageName 源码不可加载时按导入路径推断包名：去掉主版本后缀，取最后一段
func defaultPackageName(importPath string) string {
	name := path.Base(importPath)
	if majorVersion.MatchString(name) {
		name = path.Base(path.Dir(importPath))
	}
	name = strings.TrimPrefix(name, "go-")
	if i := strings.IndexAny(name, ".-"); i >= 0 {
		name = name[:i]
	}
	return name
}

// typeName 将类型表达式转换为全限定类名
func (sf *sourceFile) typeName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.StarExpr:
		return sf.typeName(e.X)
	case *ast.ParenExpr:
		return sf.typeName(e.X)
	case *ast.IndexExpr:
		return sf.typeName(e.X)
	case *ast.IndexListExpr:
		return sf.typeName(e.X)
	case *ast.Ident:
		return reflection.QualifiedName(sf.pkgPath, e.Name, e.Name)
	case *ast.SelectorExpr:
		pkg, ok := e.X.(*ast.Ident)
		if !ok {
			return ""
		}
		p, ok := sf.imports[pkg.Name]
		if !ok {
			p = pkg.Name
		}
		return reflection.QualifiedName(p, e.Sel.Name, e.Sel.Name)
	}
	return ""
}

// readAssertion 识别 var _ Iface = (*T)(nil) / T{} / &T{}
func (sf *sourceFile) readAssertion(spec *ast.ValueSpec) {
	if spec.Type == nil || len(spec.Names) != len(spec.Values) {
		return
	}
	for i, n := range spec.Names {
		if n.Name != "_" {
			continue
		}
		target := assertedType(spec.Values[i])
		if target == "" {
			continue
		}
		iface := sf.typeName(spec.Type)
		for _, v := range sf.interfaces[target] {
			if v == iface {
				iface = ""
				break
			}
		}
		if iface != "" {
			sf.interfaces[target] = append(sf.interfaces[target], iface)
		}
	}
}

func assertedType(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.CallExpr:
		// (*T)(nil)
		if len(e.Args) != 1 {
			return ""
		}
		if p, ok := e.Fun.(*ast.ParenExpr); ok {
			if s, ok := p.X.(*ast.StarExpr); ok {
				return localName(s.X)
			}
		}
	case *ast.UnaryExpr:
		if e.Op == token.AND {
			return assertedType(e.X)
		}
	case *ast.CompositeLit:
		return localName(e.Type)
	}
	return ""
}

func localName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.IndexExpr:
		return localName(e.X)
	case *ast.IndexListExpr:
		return localName(e.X)
	}
	return ""
}

func (sf *sourceFile) readMethods(file *ast.File) {
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv == nil || len(fn.Recv.List) == 0 {
			continue
		}
		if !fn.Name.IsExported() || fn.Name.Name == MethodAnnotationsName {
			continue
		}
		recv := fn.Recv.List[0].Type
		if s, ok := recv.(*ast.StarExpr); ok {
			recv = s.X
		}
		if name := localName(recv); name != "" {
			sf.methods[name] = append(sf.methods[name], fn)
		}
	}
}
