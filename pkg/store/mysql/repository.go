package mysql

// Repository aggregates the control plane's MySQL repositories.
type Repository struct {
	ds *Datastore

	Instance *InstanceRepository
}

// NewRepository opens a Datastore and wires its sub-repositories.
func NewRepository(dsn string) (*Repository, error) {
	ds, err := NewDatastore(dsn)
	if err != nil {
		return nil, err
	}
	if err := ds.AutoMigrate(); err != nil {
		ds.Close()
		return nil, err
	}

	return &Repository{
		ds:       ds,
		Instance: NewInstanceRepository(ds),
	}, nil
}

// GetDatastore returns the underlying datastore for transaction support.
func (r *Repository) GetDatastore() *Datastore {
	return r.ds
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.ds.Close()
}
