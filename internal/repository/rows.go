package repository

// pgxRows es la interfaz minima de pgx.Rows que usan los helpers de escaneo.
type pgxRows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
	Close()
}

// pgxRow cubre pgx.Row para escanear una sola fila.
type pgxRow interface {
	Scan(...interface{}) error
}

// collect escanea todas las filas con scan y cierra rows.
func collect[T any](rows pgxRows, scan func(pgxRow) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
