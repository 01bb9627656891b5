package vfspath_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mossforge/sftpvfs/pkg/vfspath"
)

var _ = Describe("Path", func() {
	Describe("Parse", func() {
		It("collapses repeated separators", func() {
			Expect(vfspath.Parse("/a//b///c").String()).To(Equal("/a/b/c"))
		})

		It("round-trips through String", func() {
			for _, raw := range []string{"/", "", "a", "a/b", "/a/b/c", "../a", "a/../b"} {
				p := vfspath.Parse(raw)
				Expect(vfspath.Parse(p.String())).To(Equal(p))
			}
		})

		It("preserves relative vs absolute", func() {
			Expect(vfspath.Parse("a/b").IsAbsolute()).To(BeFalse())
			Expect(vfspath.Parse("/a/b").IsAbsolute()).To(BeTrue())
		})
	})

	Describe("Normalize", func() {
		It("removes . segments", func() {
			Expect(vfspath.Parse("/a/./b/.").Normalize().String()).To(Equal("/a/b"))
		})

		It("collapses non-leading ..", func() {
			Expect(vfspath.Parse("/a/b/../c").Normalize().String()).To(Equal("/a/c"))
		})

		It("discards a leading .. on an absolute path", func() {
			Expect(vfspath.Parse("/../a").Normalize().String()).To(Equal("/a"))
		})

		It("keeps a leading .. on a relative path", func() {
			Expect(vfspath.Parse("../a").Normalize().String()).To(Equal("../a"))
		})

		It("is idempotent", func() {
			p := vfspath.Parse("/a/../b/./c/../../d")
			Expect(p.Normalize().Normalize()).To(Equal(p.Normalize()))
		})
	})

	Describe("Resolve", func() {
		It("returns other unchanged when other is absolute", func() {
			p := vfspath.Parse("/a/b")
			Expect(p.Resolve(vfspath.Parse("/x")).String()).To(Equal("/x"))
		})

		It("concatenates when other is relative", func() {
			p := vfspath.Parse("/a/b")
			Expect(p.Resolve(vfspath.Parse("c/d")).String()).To(Equal("/a/b/c/d"))
		})

		It("makes the root absolute when resolving a relative path", func() {
			Expect(vfspath.Root.Resolve(vfspath.Parse("rel")).IsAbsolute()).To(BeTrue())
		})
	})

	Describe("ResolveSibling", func() {
		It("resolves against the parent", func() {
			p := vfspath.Parse("/a/b/c")
			Expect(p.ResolveSibling(vfspath.Parse("d")).String()).To(Equal("/a/b/d"))
		})

		It("returns other unchanged when the receiver has no parent", func() {
			Expect(vfspath.Parse("solo").ResolveSibling(vfspath.Parse("d")).String()).To(Equal("d"))
		})
	})

	Describe("Relativize", func() {
		It("round-trips: p.resolve(q).relativize(p.resolve(q)) is empty", func() {
			p := vfspath.Parse("/a/b")
			q := vfspath.Parse("c/d")
			joined := p.Resolve(q)
			rel, err := joined.Relativize(joined)
			Expect(err).NotTo(HaveOccurred())
			Expect(rel.String()).To(Equal(""))
		})

		It("computes minimal .. sequences", func() {
			a := vfspath.Parse("/a/b/c")
			b := vfspath.Parse("/a/x/y")
			rel, err := a.Relativize(b)
			Expect(err).NotTo(HaveOccurred())
			Expect(rel.String()).To(Equal("../../x/y"))
		})

		It("fails on mismatched polarity", func() {
			_, err := vfspath.Parse("/a").Relativize(vfspath.Parse("b"))
			Expect(err).To(HaveOccurred())
			var polarity *vfspath.PolarityError
			Expect(err).To(BeAssignableToTypeOf(polarity))
		})
	})

	Describe("GetParent / GetFileName / GetRoot", func() {
		It("reports the parent of a multi-segment path", func() {
			parent, ok := vfspath.Parse("/a/b/c").GetParent()
			Expect(ok).To(BeTrue())
			Expect(parent.String()).To(Equal("/a/b"))
		})

		It("reports root as the parent of a single absolute segment", func() {
			parent, ok := vfspath.Parse("/a").GetParent()
			Expect(ok).To(BeTrue())
			Expect(parent).To(Equal(vfspath.Root))
		})

		It("has no parent for the root", func() {
			_, ok := vfspath.Root.GetParent()
			Expect(ok).To(BeFalse())
		})

		It("returns the file name", func() {
			name, ok := vfspath.Parse("/a/b/c").GetFileName()
			Expect(ok).To(BeTrue())
			Expect(name.String()).To(Equal("c"))
		})

		It("returns the root iff absolute", func() {
			root, ok := vfspath.Parse("/a").GetRoot()
			Expect(ok).To(BeTrue())
			Expect(root).To(Equal(vfspath.Root))

			_, ok = vfspath.Parse("a").GetRoot()
			Expect(ok).To(BeFalse())
		})
	})

	Describe("ToAbsolute", func() {
		It("leaves an absolute path unchanged", func() {
			p := vfspath.Parse("/a/b")
			Expect(p.ToAbsolute(vfspath.Parse("/home/joe")).String()).To(Equal("/a/b"))
		})

		It("resolves a relative path against the default directory", func() {
			p := vfspath.Parse("a/b")
			Expect(p.ToAbsolute(vfspath.Parse("/home/joe")).String()).To(Equal("/home/joe/a/b"))
		})
	})

	Describe("Subpath and GetName", func() {
		It("extracts a segment range", func() {
			p := vfspath.Parse("/a/b/c/d")
			Expect(p.Subpath(1, 3).String()).To(Equal("b/c"))
		})

		It("extracts a single segment", func() {
			p := vfspath.Parse("/a/b/c")
			Expect(p.GetName(1).String()).To(Equal("b"))
		})
	})
})
