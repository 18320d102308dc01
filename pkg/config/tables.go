// pkg/config/tables.go
package config

// BuiltinTables returns the table configurations for the legacy extracts
// this migration covers. The table set is finite and known ahead of
// time; configurations live in code so unknown rule or transformer
// names are caught before any run starts.
func BuiltinTables() []*TableConfiguration {
	return []*TableConfiguration{
		studentsTable(),
		enrollmentsTable(),
		termsTable(),
		coursesTable(),
		receiptsTable(),
	}
}

func studentsTable() *TableConfiguration {
	return &TableConfiguration{
		TableID:    "students",
		SourceFile: "students.csv",
		Columns: []ColumnMapping{
			{
				Source: "ID", Target: "student_id", Type: TypeText,
				IdentityKey:   true,
				CleaningRules: []string{"trim_whitespace"},
				Description:   "legacy student number",
			},
			{
				Source: "Name", Target: "name_en", Type: TypeText,
				Nullable:      true,
				CleaningRules: []string{"trim_whitespace", "collapse_spaces", "encoding_fix"},
				Description:   "student name, Latin transcription",
			},
			{
				Source: "NameKH", Target: "name_km", Type: TypeText,
				Nullable:      true,
				CleaningRules: []string{"trim_whitespace", "encoding_fix"},
				Description:   "student name in Khmer script (legacy Limon encoding)",
			},
			{
				Source: "Sex", Target: "gender", Type: TypeText,
				Nullable:      true,
				CleaningRules: []string{"trim_whitespace", "normalize_gender"},
			},
			{
				Source: "BirthDate", Target: "birth_date", Type: TypeDate,
				Nullable:      true,
				CleaningRules: []string{"trim_whitespace", "normalize_date"},
			},
			{
				Source: "MobilePhone", Target: "phone", Type: TypeText,
				Nullable:      true,
				CleaningRules: []string{"trim_whitespace", "normalize_phone"},
			},
		},
		Transformations: []TransformationRule{
			{
				SourceColumn: "NameKH", TargetColumn: "name_km",
				Transformer:      "limon_to_unicode",
				PreserveOriginal: true,
			},
		},
	}
}

func enrollmentsTable() *TableConfiguration {
	return &TableConfiguration{
		TableID:    "enrollments",
		SourceFile: "enrollments.csv",
		Columns: []ColumnMapping{
			{
				Source: "EnrollID", Target: "enrollment_id", Type: TypeText,
				IdentityKey:   true,
				CleaningRules: []string{"trim_whitespace"},
			},
			{
				Source: "StudentID", Target: "student_id", Type: TypeText,
				CleaningRules: []string{"trim_whitespace"},
			},
			{
				Source: "CourseCode", Target: "course_code", Type: TypeText,
				CleaningRules: []string{"trim_whitespace", "uppercase"},
			},
			{
				Source: "TermCode", Target: "term_code", Type: TypeText,
				CleaningRules: []string{"trim_whitespace", "uppercase"},
			},
			{
				Source: "Grade", Target: "grade", Type: TypeText,
				Nullable:      true,
				CleaningRules: []string{"trim_whitespace", "uppercase"},
			},
			{
				Source: "Credits", Target: "credits", Type: TypeInteger,
				Nullable:      true,
				CleaningRules: []string{"trim_whitespace", "to_integer"},
			},
		},
		Transformations: []TransformationRule{
			{
				SourceColumn: "CourseCode", TargetColumn: "course_code",
				Transformer:      "education_code",
				PreserveOriginal: true,
			},
			{
				SourceColumn: "TermCode", TargetColumn: "term_code",
				Transformer: "term_code",
			},
		},
	}
}

func termsTable() *TableConfiguration {
	return &TableConfiguration{
		TableID:    "terms",
		SourceFile: "terms.csv",
		Columns: []ColumnMapping{
			{
				Source: "TermID", Target: "term_id", Type: TypeText,
				IdentityKey:   true,
				CleaningRules: []string{"trim_whitespace", "uppercase"},
			},
			{
				Source: "StartDate", Target: "start_date", Type: TypeDate,
				Nullable:      true,
				CleaningRules: []string{"trim_whitespace", "normalize_date"},
			},
			{
				Source: "EndDate", Target: "end_date", Type: TypeDate,
				Nullable:      true,
				CleaningRules: []string{"trim_whitespace", "normalize_date"},
			},
			{
				Source: "Description", Target: "description", Type: TypeText,
				Nullable:      true,
				CleaningRules: []string{"trim_whitespace", "collapse_spaces", "encoding_fix"},
			},
		},
		Transformations: []TransformationRule{
			{
				SourceColumn: "TermID", TargetColumn: "term_id",
				Transformer:      "term_code",
				PreserveOriginal: true,
			},
		},
	}
}

func coursesTable() *TableConfiguration {
	return &TableConfiguration{
		TableID:    "courses",
		SourceFile: "courses.csv",
		Columns: []ColumnMapping{
			{
				Source: "CourseCode", Target: "course_code", Type: TypeText,
				IdentityKey:   true,
				CleaningRules: []string{"trim_whitespace", "uppercase"},
			},
			{
				Source: "Title", Target: "title", Type: TypeText,
				Nullable:      true,
				CleaningRules: []string{"trim_whitespace", "collapse_spaces", "encoding_fix"},
			},
			{
				Source: "TitleKH", Target: "title_km", Type: TypeText,
				Nullable:      true,
				CleaningRules: []string{"trim_whitespace", "encoding_fix"},
			},
			{
				Source: "Type", Target: "course_type", Type: TypeText,
				Nullable:      true,
				CleaningRules: []string{"trim_whitespace", "uppercase"},
			},
			{
				Source: "Credits", Target: "credits", Type: TypeInteger,
				Nullable:      true,
				CleaningRules: []string{"trim_whitespace", "to_integer"},
			},
		},
		Transformations: []TransformationRule{
			{
				SourceColumn: "CourseCode", TargetColumn: "course_code",
				Transformer:      "education_code",
				PreserveOriginal: true,
			},
			{
				SourceColumn: "TitleKH", TargetColumn: "title_km",
				Transformer:      "limon_to_unicode",
				PreserveOriginal: true,
			},
			{
				SourceColumn: "Type", TargetColumn: "course_type",
				Transformer: "category_code",
			},
		},
	}
}

func receiptsTable() *TableConfiguration {
	return &TableConfiguration{
		TableID:    "receipts",
		SourceFile: "receipts.csv",
		Columns: []ColumnMapping{
			{
				Source: "ReceiptNo", Target: "receipt_no", Type: TypeText,
				IdentityKey:   true,
				CleaningRules: []string{"trim_whitespace"},
			},
			{
				Source: "StudentID", Target: "student_id", Type: TypeText,
				CleaningRules: []string{"trim_whitespace"},
			},
			{
				Source: "TermCode", Target: "term_code", Type: TypeText,
				Nullable:      true,
				CleaningRules: []string{"trim_whitespace", "uppercase"},
			},
			{
				Source: "Amount", Target: "amount", Type: TypeDecimal,
				CleaningRules: []string{"trim_whitespace", "to_decimal"},
			},
			{
				Source: "Paid", Target: "paid", Type: TypeBoolean,
				Nullable:      true,
				CleaningRules: []string{"trim_whitespace", "to_boolean"},
			},
			{
				Source: "PayDate", Target: "pay_date", Type: TypeDate,
				Nullable:      true,
				CleaningRules: []string{"trim_whitespace", "normalize_date"},
			},
		},
		Transformations: []TransformationRule{
			{
				SourceColumn: "TermCode", TargetColumn: "term_code",
				Transformer: "term_code",
			},
		},
	}
}
