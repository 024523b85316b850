// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

//go:build integration

package register_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/nguyendan07/seminary-management-system/internal/roster"
	rosterpostgres "github.com/nguyendan07/seminary-management-system/internal/roster/postgres"
	"github.com/nguyendan07/seminary-management-system/pkg/errutil"
)

var _ = Describe("Student register over PostgreSQL", func() {
	var svc *roster.Service

	create := func(code, name, birthDate, hometown, parish, diocese string) *roster.Student {
		student, err := svc.Create(env.ctx, roster.CreateParams{
			Code:      code,
			FullName:  name,
			BirthDate: birthDate,
			Hometown:  hometown,
			Parish:    parish,
			Diocese:   diocese,
		})
		Expect(err).NotTo(HaveOccurred())
		return student
	}

	BeforeEach(func() {
		env.truncateStudents()

		var err error
		svc, err = roster.NewService(rosterpostgres.NewStudentRepository(env.pool))
		Expect(err).NotTo(HaveOccurred())
	})

	It("creates and retrieves a student by code and by ID", func() {
		created := create("SV001", "Nguyen Van An", "15/03/2001", "Thai Binh", "An Lac", "Thai Binh")

		byCode, err := svc.Get(env.ctx, "sv001")
		Expect(err).NotTo(HaveOccurred())
		Expect(byCode.ID).To(Equal(created.ID))

		byID, err := svc.Get(env.ctx, created.ID.String())
		Expect(err).NotTo(HaveOccurred())
		Expect(byID.Code).To(Equal("SV001"))
	})

	It("rejects duplicate codes", func() {
		create("SV001", "Nguyen Van An", "15/03/2001", "", "", "")

		_, err := svc.Create(env.ctx, roster.CreateParams{
			Code:      "SV001",
			FullName:  "Tran Van Binh",
			BirthDate: "20/07/1999",
		})
		Expect(errutil.ErrorCode(err)).To(Equal("STUDENT_DUPLICATE"))
	})

	It("auto-assigns the next free code", func() {
		create("SV001", "Nguyen Van An", "15/03/2001", "", "", "")
		create("SV003", "Tran Van Binh", "20/07/1999", "", "", "")

		auto, err := svc.Create(env.ctx, roster.CreateParams{
			FullName:  "Le Van Cuong",
			BirthDate: "02/11/2000",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(auto.Code).To(Equal("SV004"))
	})

	It("updates mutable fields but never the code", func() {
		create("SV001", "Nguyen Van An", "15/03/2001", "Thai Binh", "", "Thai Binh")

		updated, err := svc.Update(env.ctx, "SV001", roster.UpdateParams{
			FullName:  "Nguyen Van An",
			BirthDate: "15/03/2001",
			Hometown:  "Nam Dinh",
			Diocese:   "Bui Chu",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Code).To(Equal("SV001"))
		Expect(updated.Hometown).To(Equal("Nam Dinh"))
		Expect(updated.Diocese).To(Equal("Bui Chu"))
	})

	It("deletes and then reports not found", func() {
		create("SV001", "Nguyen Van An", "15/03/2001", "", "", "")

		Expect(svc.Delete(env.ctx, "SV001")).To(Succeed())

		_, err := svc.Get(env.ctx, "SV001")
		Expect(errutil.ErrorCode(err)).To(Equal("STUDENT_NOT_FOUND"))
	})

	It("filters and searches the register", func() {
		create("SV001", "Nguyen Van An", "15/03/2001", "Thai Binh", "An Lac", "Thai Binh")
		create("SV002", "Tran Van Binh", "20/07/1999", "Nam Dinh", "Phu Nhai", "Bui Chu")

		filtered, err := svc.List(env.ctx, roster.Filter{Diocese: "Bui Chu"})
		Expect(err).NotTo(HaveOccurred())
		Expect(filtered).To(HaveLen(1))
		Expect(filtered[0].Code).To(Equal("SV002"))

		matched, err := svc.Search(env.ctx, `name ~ "*An*" and birth_year >= 2000`)
		Expect(err).NotTo(HaveOccurred())
		Expect(matched).To(HaveLen(1))
		Expect(matched[0].Code).To(Equal("SV001"))
	})

	It("computes stats and exports CSV", func() {
		create("SV001", "Nguyen Van An", "15/03/2001", "", "", "Thai Binh")
		create("SV002", "Tran Van Binh", "20/07/1999", "", "", "Thai Binh")
		create("SV003", "Le Van Cuong", "02/11/2000", "", "", "Bui Chu")

		stats, err := svc.Stats(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Total).To(Equal(int64(3)))
		Expect(stats.ByDiocese["Thai Binh"]).To(Equal(int64(2)))
		Expect(stats.ByDiocese["Bui Chu"]).To(Equal(int64(1)))

		var buf bytes.Buffer
		Expect(svc.ExportCSV(env.ctx, &buf)).To(Succeed())

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		Expect(lines).To(HaveLen(4))
		Expect(lines[0]).To(Equal("code,full_name,birth_date,hometown,parish,diocese"))
		Expect(lines[1]).To(HavePrefix("SV001,"))
	})
})
